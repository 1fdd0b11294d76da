// Package runner executes a claimed transcription job segment by segment.
// The loop between segments is the only suspension point: pause requests,
// cancellation and progress commits are all observed at segment boundaries.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/vutran-dev/transcribe-be/internal/artifact"
	"github.com/vutran-dev/transcribe-be/internal/engine"
	"github.com/vutran-dev/transcribe-be/internal/ledger"
	"github.com/vutran-dev/transcribe-be/internal/media"
	"github.com/vutran-dev/transcribe-be/internal/segment"
	"github.com/vutran-dev/transcribe-be/internal/subtitle"
)

// promptTailLen bounds the amount of prior text fed to the engine as
// decoding context for the next segment.
const promptTailLen = 500

// Config tunes per-segment retry behavior.
type Config struct {
	// RetryAttempts is the maximum number of engine calls per segment.
	RetryAttempts int
	// RetryInterval is the base backoff between attempts; the wait grows
	// linearly with the attempt number.
	RetryInterval time.Duration
}

// Runner drives one claimed job to a paused or terminal state. It is safe to
// share one Runner across worker goroutines; all per-job state lives in Run.
type Runner struct {
	ledger        *ledger.Ledger
	artifacts     *artifact.Store
	decoder       media.Decoder
	extractor     media.ClipExtractor
	transcriber   engine.Transcriber
	retryAttempts int
	retryInterval time.Duration
	logger        *slog.Logger
}

// New creates a Runner. RetryAttempts below one is clamped to a single
// attempt.
func New(
	l *ledger.Ledger,
	artifacts *artifact.Store,
	decoder media.Decoder,
	extractor media.ClipExtractor,
	transcriber engine.Transcriber,
	cfg Config,
	logger *slog.Logger,
) *Runner {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Runner{
		ledger:        l,
		artifacts:     artifacts,
		decoder:       decoder,
		extractor:     extractor,
		transcriber:   transcriber,
		retryAttempts: attempts,
		retryInterval: cfg.RetryInterval,
		logger:        logger,
	}
}

// Run processes the job from its resume index to completion, pause or error.
// The job must be a freshly claimed snapshot carrying the claim token.
//
// A nil return means the job reached a stable state (completed, paused,
// errored, or lost its claim to a cancel). A non-nil return means an
// infrastructure failure interrupted the run and the dispatch message should
// be retried.
func (r *Runner) Run(ctx context.Context, job *ledger.Job) error {
	token := job.ClaimToken
	if token == "" {
		return fmt.Errorf("job %s has no claim token", job.JobID)
	}

	log := r.logger.With(slog.String("job_id", job.JobID))

	inputPath, err := r.artifacts.Path(job.InputLocation)
	if err != nil {
		return r.failJob(ctx, job.JobID, token, fmt.Sprintf("Input media is missing: %v", err))
	}

	stream, err := r.decoder.Decode(ctx, inputPath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.failJob(ctx, job.JobID, token, fmt.Sprintf("Failed to decode media: %v", err))
	}

	// The plan is a pure function of duration and segment length, so a
	// resumed run recomputes the exact segmentation of the original run.
	segments := segment.Split(stream.Duration, float64(job.SegmentLength))
	if _, err := r.ledger.SetSegmentPlan(ctx, job.JobID, token, len(segments)); err != nil {
		return r.handleCommitErr(log, "segment plan", err)
	}

	log.Info("Job run started",
		slog.Float64("duration_sec", stream.Duration),
		slog.Int("segments", len(segments)),
		slog.Int("next_segment", job.NextSegment),
	)

	prompt := r.promptTail(ctx, job)

	for i := job.NextSegment; i < len(segments); i++ {
		fresh, err := r.ledger.Get(ctx, job.JobID)
		if err != nil {
			return fmt.Errorf("failed to refresh job: %w", err)
		}
		if fresh.ClaimToken != token {
			log.Info("Claim lost, stopping run")
			return nil
		}
		if fresh.PauseRequested {
			if _, err := r.ledger.CommitPaused(ctx, job.JobID, token); err != nil {
				return r.handleCommitErr(log, "pause", err)
			}
			return nil
		}

		seg := segments[i]
		result, err := r.transcribeSegment(ctx, stream, seg, job, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return r.failJob(ctx, job.JobID, token,
				fmt.Sprintf("Transcription failed at segment %d of %d: %v", i+1, len(segments), err))
		}

		record := &ledger.SegmentResult{
			JobID: job.JobID,
			Index: seg.Index,
			Start: seg.Start + result.Start,
			End:   seg.Start + result.End,
			Text:  result.Text,
		}
		if record.End <= record.Start {
			record.End = seg.End
		}
		if err := r.ledger.AppendSegmentResult(ctx, record); err != nil {
			return fmt.Errorf("failed to store segment result: %w", err)
		}

		progress := int(math.Round(100 * float64(i+1) / float64(len(segments))))
		message := fmt.Sprintf("Transcribed segment %d of %d", i+1, len(segments))
		if _, err := r.ledger.CommitProgress(ctx, job.JobID, token, i, progress, message); err != nil {
			return r.handleCommitErr(log, "progress", err)
		}

		prompt = result.Text
	}

	return r.assemble(ctx, log, job, token)
}

// transcribeSegment extracts the segment clip and calls the engine, retrying
// transient failures with linear backoff. Permanent failures escalate on the
// first occurrence.
func (r *Runner) transcribeSegment(
	ctx context.Context,
	stream *media.Stream,
	seg segment.Segment,
	job *ledger.Job,
	prompt string,
) (*engine.Result, error) {
	var lastErr error

	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		clip, err := r.extractor.ExtractClip(ctx, stream, seg.Start, seg.Duration())
		if err != nil {
			return nil, fmt.Errorf("clip extraction failed: %w", err)
		}

		result, err := r.transcriber.Transcribe(ctx, engine.Request{
			AudioPath:          clip,
			Model:              job.Model,
			TranslateToEnglish: !job.KeepSourceLanguage,
			Prompt:             tail(prompt, promptTailLen),
		})
		os.Remove(clip)
		if err == nil {
			return result, nil
		}

		var transient *engine.TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err

		r.logger.Warn("Transient segment failure",
			slog.String("job_id", job.JobID),
			slog.Int("segment", seg.Index),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if attempt < r.retryAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryInterval * time.Duration(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

// assemble joins the committed segment results into the final transcript and
// subtitle artifacts and marks the job completed.
func (r *Runner) assemble(ctx context.Context, log *slog.Logger, job *ledger.Job, token string) error {
	results, err := r.ledger.SegmentResults(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("failed to load segment results: %w", err)
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		if text := strings.TrimSpace(res.Text); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return r.failJob(ctx, job.JobID, token, "Transcription produced no text")
	}
	transcript := strings.Join(texts, "\n")

	language := "English"
	if job.KeepSourceLanguage {
		info := whatlanggo.Detect(transcript)
		language = info.Lang.String()
	}

	transcriptLoc, err := r.artifacts.Put(artifact.KindTranscript, job.JobID, []byte(transcript))
	if err != nil {
		return r.failJob(ctx, job.JobID, token, fmt.Sprintf("Failed to store transcript: %v", err))
	}

	subtitleLoc := ""
	if !job.SkipSubtitle {
		subtitleLoc, err = r.artifacts.Put(artifact.KindSubtitle, job.JobID, []byte(subtitle.Render(results)))
		if err != nil {
			return r.failJob(ctx, job.JobID, token, fmt.Sprintf("Failed to store subtitle: %v", err))
		}
	}

	if _, err := r.ledger.CommitCompleted(ctx, job.JobID, token, transcriptLoc, subtitleLoc, language); err != nil {
		return r.handleCommitErr(log, "completion", err)
	}

	if err := r.ledger.DeleteSegmentResults(ctx, job.JobID); err != nil {
		log.Warn("Failed to drop intermediate segment results",
			slog.Any("error", err),
		)
	}

	return nil
}

// promptTail seeds the engine prompt from already committed results so a
// resumed run keeps decoding context across the pause boundary.
func (r *Runner) promptTail(ctx context.Context, job *ledger.Job) string {
	if job.NextSegment == 0 {
		return ""
	}
	results, err := r.ledger.SegmentResults(ctx, job.JobID)
	if err != nil || len(results) == 0 {
		return ""
	}
	return results[len(results)-1].Text
}

// failJob records a terminal error on the job. Losing the claim while doing
// so is not a run failure.
func (r *Runner) failJob(ctx context.Context, jobID, token, message string) error {
	if _, err := r.ledger.CommitError(ctx, jobID, token, message); err != nil {
		return r.handleCommitErr(r.logger.With(slog.String("job_id", jobID)), "error", err)
	}
	return nil
}

// handleCommitErr maps fencing rejections to a clean stop and passes
// infrastructure errors through for redelivery.
func (r *Runner) handleCommitErr(log *slog.Logger, commit string, err error) error {
	var illegal *ledger.IllegalTransitionError
	if errors.Is(err, ledger.ErrStaleRunner) || errors.As(err, &illegal) {
		log.Info("Commit fenced, stopping run",
			slog.String("commit", commit),
			slog.Any("error", err),
		)
		return nil
	}
	return fmt.Errorf("%s commit failed: %w", commit, err)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
