package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/fhir"
)

// PGStore persists resource snapshots as JSONB rows, one row per (type, id).
// Single-statement INSERT ... ON CONFLICT and conditional UPDATE give each
// operation per-statement atomicity; concurrent updates to the same id are
// last-writer-wins, same as the in-memory store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed store using the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, r fhir.Resource) (fhir.Resource, error) {
	stored := r.Clone()
	if stored.ID() == "" {
		stored.SetID(uuid.New().String())
	}
	stored.Stamp(time.Now())

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO resource (resource_type, id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_type, id) DO NOTHING`,
		stored.Type(), stored.ID(), body)
	if err != nil {
		return nil, fmt.Errorf("insert resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}
	return stored, nil
}

func (s *PGStore) Read(ctx context.Context, resourceType, id string) (fhir.Resource, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `
		SELECT body FROM resource
		WHERE resource_type = $1 AND id = $2`,
		resourceType, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read resource: %w", err)
	}
	return unmarshalResource(body)
}

func (s *PGStore) Update(ctx context.Context, r fhir.Resource) (fhir.Resource, error) {
	stored := r.Clone()
	stored.Stamp(time.Now())

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE resource SET body = $3, updated_at = now()
		WHERE resource_type = $1 AND id = $2`,
		stored.Type(), stored.ID(), body)
	if err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return stored, nil
}

func (s *PGStore) Search(ctx context.Context, resourceType string, p Predicate) ([]fhir.Resource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT body FROM resource
		WHERE resource_type = $1
		ORDER BY created_at`,
		resourceType)
	if err != nil {
		return nil, fmt.Errorf("search resources: %w", err)
	}
	defer rows.Close()

	results := []fhir.Resource{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r, err := unmarshalResource(body)
		if err != nil {
			return nil, err
		}
		if p == nil || p(r) {
			results = append(results, r)
		}
	}
	return results, rows.Err()
}

func unmarshalResource(body []byte) (fhir.Resource, error) {
	var r fhir.Resource
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("unmarshal resource: %w", err)
	}
	return r, nil
}
