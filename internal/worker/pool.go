package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

// retryableError marks a processing failure worth redelivering to another
// worker, as opposed to one already settled on the job record.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return "retryable: " + e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func newRetryableError(err error) error {
	return &retryableError{err: err}
}

// workerLoop drains jobsChan until it closes, acknowledging each delivery by
// the outcome of processJob.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for msg := range w.jobsChan {
		log := w.logger.With(
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.jobID),
		)

		err := w.processJob(ctx, msg.jobID)

		channel := w.rabbitClient.GetChannel()
		if channel == nil {
			log.Error("Failed to get RabbitMQ channel for ACK/NACK")
			continue
		}

		if err != nil {
			requeue := shouldRequeue(err)
			log.Error("Job processing failed",
				slog.String("error", err.Error()),
				slog.Bool("requeue", requeue),
			)
			if nackErr := channel.Nack(msg.deliveryTag, false, requeue); nackErr != nil {
				log.Error("Failed to NACK message",
					slog.String("error", nackErr.Error()),
				)
			}
			continue
		}

		if ackErr := channel.Ack(msg.deliveryTag, false); ackErr != nil {
			log.Error("Failed to ACK message",
				slog.String("error", ackErr.Error()),
			)
		}
	}

	w.logger.Info("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// shouldRequeue decides redelivery by error class. Duplicate deliveries and
// vanished jobs are settled; only transient infrastructure failures requeue.
func shouldRequeue(err error) bool {
	if errors.Is(err, ledger.ErrAlreadyClaimed) {
		return false
	}
	if errors.Is(err, ledger.ErrJobNotFound) {
		return false
	}

	var retryable *retryableError
	return errors.As(err, &retryable)
}
