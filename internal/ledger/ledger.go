package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ledger is the source of truth for job identity, configuration, status and
// progress. Every status/progress mutation funnels through its guarded
// mutators; illegal transitions are rejected and leave the record unchanged.
//
// Status transitions: queued -> processing -> {paused <-> processing} ->
// {completed | error}. queued -> error is legal for failed pre-flight
// validation. Terminal states absorb.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// New creates a Ledger over the given store.
func New(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
	}
}

// NewJobID mints a job identifier. Callers that store the uploaded input
// under the job's directory need the identifier before Create.
func NewJobID() string {
	return uuid.New().String()
}

// Create validates the configuration and stores a new queued job under the
// given identifier. An empty jobID gets a fresh one.
func (l *Ledger) Create(ctx context.Context, jobID string, cfg JobConfig, inputLocation, originalFilename string) (*Job, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, &ValidationError{Reason: "model is required"}
	}
	if cfg.SegmentLength <= 0 {
		return nil, &ValidationError{Reason: "segment length must be positive"}
	}
	if jobID == "" {
		jobID = NewJobID()
	}

	now := time.Now().UTC()
	job := &Job{
		JobID:              jobID,
		Model:              cfg.Model,
		KeepSourceLanguage: cfg.KeepSourceLanguage,
		SkipSubtitle:       cfg.SkipSubtitle,
		SegmentLength:      cfg.SegmentLength,
		Status:             StatusQueued,
		Progress:           0,
		Message:            "Job queued",
		OriginalFilename:   originalFilename,
		InputLocation:      inputLocation,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := l.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	l.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("model", job.Model),
		slog.Int("segment_length", job.SegmentLength),
	)

	return job, nil
}

// Get returns a consistent snapshot of the job.
func (l *Ledger) Get(ctx context.Context, jobID string) (*Job, error) {
	return l.store.GetJob(ctx, jobID)
}

// List returns job snapshots matching the filter.
func (l *Ledger) List(ctx context.Context, filter JobFilter) ([]Job, error) {
	return l.store.ListJobs(ctx, filter)
}

// Delete removes a terminal job record and its segment results.
func (l *Ledger) Delete(ctx context.Context, jobID string) error {
	job, err := l.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return &IllegalTransitionError{Current: job.Status}
	}

	if err := l.store.DeleteSegmentResults(ctx, jobID); err != nil {
		return err
	}
	return l.store.DeleteJob(ctx, jobID)
}

// RequestPause asks the active runner to stop at the next segment boundary.
// Legal only while processing; the status flips to paused when the runner
// observes the flag, not here.
func (l *Ledger) RequestPause(ctx context.Context, jobID string) (*Job, error) {
	return l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if job.Status != StatusProcessing {
			return &IllegalTransitionError{Current: job.Status}
		}
		job.PauseRequested = true
		job.Message = "Pause requested"
		return nil
	})
}

// RequestResume returns a paused job to processing so a fresh runner can be
// dispatched. A paused status implies the previous runner has already exited,
// so no runner is active when this succeeds.
func (l *Ledger) RequestResume(ctx context.Context, jobID string) (*Job, error) {
	job, err := l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if job.Status != StatusPaused {
			return &IllegalTransitionError{Current: job.Status}
		}
		job.Status = StatusProcessing
		job.PauseRequested = false
		job.Message = "Resuming"
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Job resume requested",
		slog.String("job_id", jobID),
		slog.Int("next_segment", job.NextSegment),
	)
	return job, nil
}

// Cancel terminates a non-terminal job with an error status. Clearing the
// claim token fences any still-active runner at its next commit.
func (l *Ledger) Cancel(ctx context.Context, jobID string) (*Job, error) {
	return l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if job.Status.Terminal() {
			return &IllegalTransitionError{Current: job.Status}
		}
		job.Status = StatusError
		job.Message = "Canceled by operator"
		job.PauseRequested = false
		job.ClaimToken = ""
		return nil
	})
}

// Claim hands the job to exactly one runner. A job is claimable when it is
// queued, or when it is processing with no claim token outstanding (the state
// RequestResume leaves behind). The issued token fences every later commit,
// so duplicate dispatch deliveries lose the race here.
func (l *Ledger) Claim(ctx context.Context, jobID, workerID string) (*Job, error) {
	token := uuid.New().String()
	job, err := l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if job.Status != StatusQueued && job.Status != StatusProcessing {
			return &IllegalTransitionError{Current: job.Status}
		}
		if job.Status == StatusProcessing && job.ClaimToken != "" {
			return ErrAlreadyClaimed
		}
		job.Status = StatusProcessing
		job.ClaimToken = token
		job.Message = "Processing"
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.Int("next_segment", job.NextSegment),
	)
	return job, nil
}

// SetSegmentPlan records the deterministic segment count for the job.
func (l *Ledger) SetSegmentPlan(ctx context.Context, jobID, token string, count int) (*Job, error) {
	return l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if err := checkToken(job, token); err != nil {
			return err
		}
		job.SegmentCount = count
		return nil
	})
}

// CommitProgress records a completed segment: progress, a refreshed message
// and the resume index. Progress is monotonically non-decreasing while
// processing.
func (l *Ledger) CommitProgress(ctx context.Context, jobID, token string, segmentIndex, progress int, message string) (*Job, error) {
	return l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if err := checkToken(job, token); err != nil {
			return err
		}
		if progress < job.Progress {
			return ErrProgressRegression
		}
		job.Progress = progress
		job.Message = message
		job.NextSegment = segmentIndex + 1
		return nil
	})
}

// CommitPaused flips the job to paused after the runner observed the pause
// request at a segment boundary. Progress and the resume index are preserved;
// the claim token is released so a later resume can be claimed.
func (l *Ledger) CommitPaused(ctx context.Context, jobID, token string) (*Job, error) {
	job, err := l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if err := checkToken(job, token); err != nil {
			return err
		}
		job.Status = StatusPaused
		job.Message = "Paused"
		job.ClaimToken = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Job paused",
		slog.String("job_id", jobID),
		slog.Int("progress", job.Progress),
		slog.Int("next_segment", job.NextSegment),
	)
	return job, nil
}

// CommitCompleted finalizes a fully processed job and records the output
// artifact locations. output_ready becomes true only through this commit.
func (l *Ledger) CommitCompleted(ctx context.Context, jobID, token, transcriptLocation, subtitleLocation, language string) (*Job, error) {
	job, err := l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if err := checkToken(job, token); err != nil {
			return err
		}
		job.Status = StatusCompleted
		job.Progress = 100
		job.Message = "Transcription complete"
		job.TranscriptLocation = transcriptLocation
		job.SubtitleLocation = subtitleLocation
		job.Language = language
		job.PauseRequested = false
		job.ClaimToken = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("transcript", transcriptLocation),
		slog.String("subtitle", subtitleLocation),
	)
	return job, nil
}

// CommitError terminates the job with a diagnostic message. Progress stays
// frozen at the last successfully committed segment.
func (l *Ledger) CommitError(ctx context.Context, jobID, token, message string) (*Job, error) {
	job, err := l.store.UpdateJob(ctx, jobID, func(job *Job) error {
		if err := checkToken(job, token); err != nil {
			return err
		}
		job.Status = StatusError
		job.Message = message
		job.PauseRequested = false
		job.ClaimToken = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Warn("Job failed",
		slog.String("job_id", jobID),
		slog.String("message", message),
	)
	return job, nil
}

// AppendSegmentResult durably stores one processed segment so resume survives
// process restarts.
func (l *Ledger) AppendSegmentResult(ctx context.Context, result *SegmentResult) error {
	return l.store.AppendSegmentResult(ctx, result)
}

// SegmentResults returns the committed segment results ordered by index.
func (l *Ledger) SegmentResults(ctx context.Context, jobID string) ([]SegmentResult, error) {
	return l.store.SegmentResults(ctx, jobID)
}

// DeleteSegmentResults drops the intermediate results of an assembled job.
func (l *Ledger) DeleteSegmentResults(ctx context.Context, jobID string) error {
	return l.store.DeleteSegmentResults(ctx, jobID)
}

func checkToken(job *Job, token string) error {
	if job.Status.Terminal() {
		return &IllegalTransitionError{Current: job.Status}
	}
	if token == "" || job.ClaimToken != token {
		return ErrStaleRunner
	}
	return nil
}
