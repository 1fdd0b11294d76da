package ledger

import (
	"context"
	"time"
)

// JobCursor marks a position in the created_at/job_id ordering for pagination.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// JobFilter narrows and paginates ListJobs results.
type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// Store persists job records and per-segment results. UpdateJob must apply the
// mutator atomically with per-job mutual exclusion: no two mutators may
// interleave on the same job id, and readers never observe a partially applied
// transition. Mutators that return an error leave the record unchanged.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJob(ctx context.Context, jobID string, mutate func(*Job) error) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	DeleteJob(ctx context.Context, jobID string) error

	AppendSegmentResult(ctx context.Context, result *SegmentResult) error
	SegmentResults(ctx context.Context, jobID string) ([]SegmentResult, error)
	DeleteSegmentResults(ctx context.Context, jobID string) error
}
