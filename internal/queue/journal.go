package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/ebernie/kode-context/internal/core"
)

// JobStore records job state transitions. The queue itself stays
// in-memory; the store is an append-only observer for operational
// history, never read back by the worker.
type JobStore interface {
	RecordJob(ctx context.Context, job core.IndexingJob) error
	Close() error
}

const jobJournalSchema = `
CREATE TABLE IF NOT EXISTS indexing_job_events (
	id            BIGSERIAL PRIMARY KEY,
	job_id        TEXT        NOT NULL,
	repo_url      TEXT        NOT NULL,
	branch        TEXT        NOT NULL DEFAULT '',
	status        TEXT        NOT NULL,
	priority      TEXT        NOT NULL,
	file_count    INTEGER     NOT NULL DEFAULT 0,
	changed_files TEXT        NOT NULL DEFAULT '',
	result        TEXT        NOT NULL DEFAULT '',
	error         TEXT        NOT NULL DEFAULT '',
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON indexing_job_events (job_id);
`

type jobEventRow struct {
	JobID        string    `db:"job_id"`
	RepoURL      string    `db:"repo_url"`
	Branch       string    `db:"branch"`
	Status       string    `db:"status"`
	Priority     string    `db:"priority"`
	FileCount    int       `db:"file_count"`
	ChangedFiles string    `db:"changed_files"`
	Result       string    `db:"result"`
	Error        string    `db:"error"`
	RecordedAt   time.Time `db:"recorded_at"`
}

type sqlJobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStore opens the journal database and bootstraps its schema.
func NewJobStore(driver, dsn string, logger *slog.Logger) (JobStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to job journal: %w", err)
	}
	if _, err := db.Exec(jobJournalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap job journal schema: %w", err)
	}
	return &sqlJobStore{db: db, logger: logger}, nil
}

func (s *sqlJobStore) RecordJob(ctx context.Context, job core.IndexingJob) error {
	row := jobEventRow{
		JobID:        job.ID,
		RepoURL:      job.RepoURL,
		Branch:       job.Branch,
		Status:       string(job.Status),
		Priority:     string(job.Priority),
		FileCount:    job.FileCount,
		ChangedFiles: strings.Join(job.ChangedFiles, "\n"),
		Result:       job.Result,
		Error:        job.Error,
		RecordedAt:   time.Now(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO indexing_job_events
			(job_id, repo_url, branch, status, priority, file_count, changed_files, result, error, recorded_at)
		VALUES
			(:job_id, :repo_url, :branch, :status, :priority, :file_count, :changed_files, :result, :error, :recorded_at)`,
		row)
	if err != nil {
		return fmt.Errorf("failed to record job event: %w", err)
	}
	return nil
}

func (s *sqlJobStore) Close() error {
	return s.db.Close()
}
