package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

// processJob claims the job and runs it to a stable state. The claim is the
// single-writer gate: when two workers receive the same dispatch message,
// exactly one claim succeeds and the loser settles its delivery without
// touching the job.
func (w *Worker) processJob(ctx context.Context, jobID string) error {
	log := w.logger.With(
		slog.String("job_id", jobID),
		slog.String("worker_id", w.workerID),
	)
	log.Info("Processing job")

	job, err := w.ledger.Claim(ctx, jobID, w.workerID)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyClaimed) {
			log.Warn("Job already claimed, skipping")
			return fmt.Errorf("job already claimed: %w", err)
		}
		if errors.Is(err, ledger.ErrJobNotFound) {
			log.Warn("Job record not found, dropping message")
			return fmt.Errorf("job not found: %w", err)
		}
		var illegal *ledger.IllegalTransitionError
		if errors.As(err, &illegal) {
			// Paused or terminal at claim time; a resume will publish a
			// fresh message when the job is ready again.
			log.Warn("Job not claimable, dropping message",
				slog.String("status", string(illegal.Current)),
			)
			return nil
		}
		return newRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	if runErr := w.runner.Run(jobCtx, job); runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			// The run overshot its budget; settle the job so the message is
			// not redelivered into the same wall.
			if _, commitErr := w.ledger.CommitError(ctx, job.JobID, job.ClaimToken, "Job processing timed out"); commitErr != nil {
				log.Error("Failed to record job timeout",
					slog.String("error", commitErr.Error()),
				)
				return newRetryableError(runErr)
			}
			w.cleanupInputs(log, job.JobID)
			return nil
		}
		return newRetryableError(fmt.Errorf("job run interrupted: %w", runErr))
	}

	final, err := w.ledger.Get(ctx, job.JobID)
	if err != nil {
		log.Warn("Failed to fetch job after run",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if final.Status.Terminal() {
		w.cleanupInputs(log, job.JobID)
	}

	log.Info("Job settled",
		slog.String("status", string(final.Status)),
		slog.Int("progress", final.Progress),
	)
	return nil
}

func (w *Worker) cleanupInputs(log *slog.Logger, jobID string) {
	if err := w.artifacts.RemoveInputs(jobID); err != nil {
		log.Warn("Failed to remove input artifacts",
			slog.String("error", err.Error()),
		)
	}
}
