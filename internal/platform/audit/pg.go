package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PGSink appends audit entries to the audit_log table. The table is
// insert-only; nothing in this codebase updates or deletes rows from it.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink creates a Postgres-backed audit sink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Write(ctx context.Context, e Entry) error {
	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (
			id, recorded, actor_id, actor_role, action,
			resource_type, resource_id, outcome, details
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.Recorded, e.ActorID, e.ActorRole, e.Action,
		e.ResourceType, e.ResourceID, e.Outcome, details)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// NewZerologSink writes audit entries to the structured log. It is the sink
// of last resort when no database is configured, and keeps the trail
// greppable in development.
func NewZerologSink(log zerolog.Logger) Sink {
	return SinkFunc(func(_ context.Context, e Entry) error {
		log.Info().
			Str("type", "audit").
			Str("audit_id", e.ID.String()).
			Time("recorded", e.Recorded).
			Str("actor_id", e.ActorID).
			Str("actor_role", e.ActorRole).
			Str("action", e.Action).
			Str("resource_type", e.ResourceType).
			Str("resource_id", e.ResourceID).
			Str("outcome", e.Outcome).
			Interface("details", e.Details).
			Msg("access")
		return nil
	})
}
