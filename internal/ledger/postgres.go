package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, model, keep_source_language, skip_subtitle, segment_length,
	status, progress, message, pause_requested, next_segment, segment_count,
	claim_token, language, original_filename, input_location,
	transcript_location, subtitle_location, created_at, updated_at
`

// PostgresStore persists job records in PostgreSQL. Per-job mutual exclusion
// for UpdateJob is provided by a row lock inside a transaction.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a Store backed by the given database.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (
			:job_id, :model, :keep_source_language, :skip_subtitle, :segment_length,
			:status, :progress, :message, :pause_requested, :next_segment, :segment_count,
			:claim_token, :language, :original_filename, :input_location,
			:transcript_location, :subtitle_location, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, mutate func(*Job) error) (*Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var job Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}

	if err := mutate(&job); err != nil {
		return nil, err
	}

	update := `
		UPDATE jobs
		SET status = :status,
			progress = :progress,
			message = :message,
			pause_requested = :pause_requested,
			next_segment = :next_segment,
			segment_count = :segment_count,
			claim_token = :claim_token,
			language = :language,
			transcript_location = :transcript_location,
			subtitle_location = :subtitle_location,
			updated_at = NOW()
		WHERE job_id = :job_id
	`
	if _, err := tx.NamedExecContext(ctx, update, &job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job update: %w", err)
	}
	return &job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination.
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) AppendSegmentResult(ctx context.Context, result *SegmentResult) error {
	query := `
		INSERT INTO job_segments (job_id, idx, start_sec, end_sec, text)
		VALUES (:job_id, :idx, :start_sec, :end_sec, :text)
		ON CONFLICT (job_id, idx) DO UPDATE
		SET start_sec = EXCLUDED.start_sec,
			end_sec = EXCLUDED.end_sec,
			text = EXCLUDED.text
	`
	if _, err := s.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("failed to append segment result: %w", err)
	}
	return nil
}

func (s *PostgresStore) SegmentResults(ctx context.Context, jobID string) ([]SegmentResult, error) {
	var results []SegmentResult
	query := `
		SELECT job_id, idx, start_sec, end_sec, text
		FROM job_segments
		WHERE job_id = $1
		ORDER BY idx ASC
	`
	if err := s.db.SelectContext(ctx, &results, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to load segment results: %w", err)
	}
	return results, nil
}

func (s *PostgresStore) DeleteSegmentResults(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM job_segments WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete segment results: %w", err)
	}
	return nil
}
