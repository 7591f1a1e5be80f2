// Package history provides SQLite-backed persistence for run reports
// and follow-up tasks. The shared JSON documents stay the source of
// truth for pipeline state; this database only remembers what happened.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"jobflow/internal/identity"
	"jobflow/internal/models"
)

// Store provides access to the history database.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL so a status command can read while a run writes.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0,
		prepped INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		follow_ups INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		report TEXT
	);

	CREATE TABLE IF NOT EXISTS followups (
		id TEXT PRIMARY KEY,
		queue_id TEXT NOT NULL,
		job_id TEXT,
		company TEXT,
		title TEXT,
		due_at DATETIME NOT NULL,
		done_at DATETIME,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_followups_queue_id ON followups(queue_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RunRecord summarizes one recorded pipeline run.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	DryRun     bool      `json:"dryRun"`
	Prepped    int       `json:"prepped"`
	Written    int       `json:"written"`
	FollowUps  int       `json:"followUps"`
	Failed     bool      `json:"failed"`
	ReportJSON string    `json:"report,omitempty"`
}

// RecordRun inserts a run record, assigning an id when missing.
func (s *Store) RecordRun(rec RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, duration_ms, dry_run, prepped, written, follow_ups, failed, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt, rec.DurationMS, rec.DryRun, rec.Prepped, rec.Written, rec.FollowUps, rec.Failed, rec.ReportJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, duration_ms, dry_run, prepped, written, follow_ups, failed, report
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var report sql.NullString
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.DurationMS, &rec.DryRun,
			&rec.Prepped, &rec.Written, &rec.FollowUps, &rec.Failed, &report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if report.Valid {
			rec.ReportJSON = report.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FollowUpTask is one tracked follow-up.
type FollowUpTask struct {
	ID        string     `json:"id"`
	QueueID   string     `json:"queueId"`
	JobID     string     `json:"jobId,omitempty"`
	Company   string     `json:"company,omitempty"`
	Title     string     `json:"title,omitempty"`
	DueAt     time.Time  `json:"dueAt"`
	DoneAt    *time.Time `json:"doneAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CreateFollowUp records a follow-up task for a submitted application
// and returns its id. This is the sink the run coordinator stamps
// pipeline entries with.
func (s *Store) CreateFollowUp(entry models.PipelineEntry, dueAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO followups (id, queue_id, job_id, company, title, due_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, identity.QueueIDFor(entry), entry.JobID, entry.Company, entry.Title, dueAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert follow-up: %w", err)
	}
	return id, nil
}

// ListFollowUps returns follow-up tasks, open ones only unless
// includeDone is set, oldest due first.
func (s *Store) ListFollowUps(includeDone bool) ([]FollowUpTask, error) {
	query := `SELECT id, queue_id, job_id, company, title, due_at, done_at, created_at FROM followups`
	if !includeDone {
		query += ` WHERE done_at IS NULL`
	}
	query += ` ORDER BY due_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query follow-ups: %w", err)
	}
	defer rows.Close()

	var out []FollowUpTask
	for rows.Next() {
		var ft FollowUpTask
		var jobID, company, title sql.NullString
		var doneAt sql.NullTime
		if err := rows.Scan(&ft.ID, &ft.QueueID, &jobID, &company, &title, &ft.DueAt, &doneAt, &ft.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		if jobID.Valid {
			ft.JobID = jobID.String
		}
		if company.Valid {
			ft.Company = company.String
		}
		if title.Valid {
			ft.Title = title.String
		}
		if doneAt.Valid {
			ft.DoneAt = &doneAt.Time
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

// MarkFollowUpDone stamps a follow-up task as completed.
func (s *Store) MarkFollowUpDone(id string) error {
	res, err := s.db.Exec(
		`UPDATE followups SET done_at = ? WHERE id = ? AND done_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update follow-up: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no open follow-up task %s", id)
	}
	return nil
}
