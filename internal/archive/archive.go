// Package archive mirrors submitted and archived applications into
// Postgres for long-term queries across machines. The JSON documents
// remain the source of truth; the mirror is additive and idempotent.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobflow/internal/identity"
	"jobflow/internal/models"
)

// Archive writes application rows to Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect creates and verifies the pool, then ensures the schema.
func Connect(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	a := &Archive{pool: pool}
	if err := a.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS applications_archive (
			queue_id     TEXT PRIMARY KEY,
			job_id       TEXT,
			company      TEXT,
			title        TEXT,
			folder       TEXT,
			outcome      TEXT NOT NULL,
			reason       TEXT,
			submitted_at TEXT,
			recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// RecordSubmission mirrors one submitted application. Replays are
// no-ops, keyed on the queue id. Safe on a nil archive.
func (a *Archive) RecordSubmission(ctx context.Context, entry models.PipelineEntry) error {
	return a.record(ctx, entry, "submitted", "")
}

// RecordArchival mirrors one rejected application with its reason.
// Safe on a nil archive.
func (a *Archive) RecordArchival(ctx context.Context, entry models.PipelineEntry, reason string) error {
	return a.record(ctx, entry, "archived", reason)
}

func (a *Archive) record(ctx context.Context, entry models.PipelineEntry, outcome, reason string) error {
	if a == nil || a.pool == nil {
		return nil
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO applications_archive (queue_id, job_id, company, title, folder, outcome, reason, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (queue_id) DO NOTHING`,
		identity.QueueIDFor(entry), entry.JobID, entry.Company, entry.Title, entry.FolderName,
		outcome, reason, entry.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("archive %s: %w", outcome, err)
	}
	return nil
}

// Close releases the pool. Safe on a nil archive.
func (a *Archive) Close() {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.Close()
}
