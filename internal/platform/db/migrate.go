package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migration is one schema step. Steps are applied in order and tracked in
// schema_migrations so reruns are no-ops.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_resource",
		SQL: `
			CREATE TABLE IF NOT EXISTS resource (
				resource_type TEXT        NOT NULL,
				id            TEXT        NOT NULL,
				body          JSONB       NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (resource_type, id)
			)`,
	},
	{
		Version: 2,
		Name:    "create_audit_log",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_log (
				id            UUID        PRIMARY KEY,
				seq           BIGSERIAL,
				recorded      TIMESTAMPTZ NOT NULL,
				actor_id      TEXT        NOT NULL,
				actor_role    TEXT        NOT NULL,
				action        TEXT        NOT NULL,
				resource_type TEXT        NOT NULL,
				resource_id   TEXT,
				outcome       TEXT        NOT NULL,
				details       JSONB
			)`,
	},
	{
		Version: 3,
		Name:    "protect_audit_log",
		// The audit trail is append-only at the database level too.
		SQL: `
			CREATE OR REPLACE RULE audit_log_no_update AS
				ON UPDATE TO audit_log DO INSTEAD NOTHING;
			CREATE OR REPLACE RULE audit_log_no_delete AS
				ON DELETE TO audit_log DO INSTEAD NOTHING`,
	},
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// Up applies pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, mig := range migrations {
		var exists bool
		if err := m.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`,
			mig.Version).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check migration %d: %w", mig.Version, err)
		}
		if exists {
			continue
		}

		if _, err := m.pool.Exec(ctx, mig.SQL); err != nil {
			return applied, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if _, err := m.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			mig.Version, mig.Name); err != nil {
			return applied, fmt.Errorf("record migration %d: %w", mig.Version, err)
		}
		applied++
	}
	return applied, nil
}

// Status lists each migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) (map[int]bool, error) {
	status := make(map[int]bool, len(migrations))
	for _, mig := range migrations {
		status[mig.Version] = false
	}

	rows, err := m.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		status[v] = true
	}
	return status, rows.Err()
}
