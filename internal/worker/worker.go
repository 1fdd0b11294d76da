// Package worker consumes transcription dispatch messages and drives claimed
// jobs through the runner. Delivery acknowledgment is manual: a message is
// ACKed once the job reached a stable state and NACKed with requeue only for
// transient infrastructure failures.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vutran-dev/transcribe-be/internal/artifact"
	"github.com/vutran-dev/transcribe-be/internal/ledger"
	"github.com/vutran-dev/transcribe-be/shared/rabbitmq"
)

// JobRunner executes one claimed job to a paused or terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *ledger.Job) error
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Ledger       *ledger.Ledger
	Artifacts    *artifact.Store
	Runner       JobRunner
	RabbitClient *rabbitmq.Client
	WorkerID     string
	QueueName    string
	Concurrency  int
	Prefetch     int
	JobTimeout   time.Duration
}

// Worker represents the background transcription worker
type Worker struct {
	logger       *slog.Logger
	ledger       *ledger.Ledger
	artifacts    *artifact.Store
	runner       JobRunner
	rabbitClient *rabbitmq.Client
	workerID     string
	queueName    string
	concurrency  int
	prefetch     int
	jobTimeout   time.Duration
	jobsChan     chan *jobMessage
}

// jobMessage carries one dispatch delivery through the worker pool.
type jobMessage struct {
	jobID       string
	deliveryTag uint64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	prefetch := cfg.Prefetch
	if prefetch < 1 {
		prefetch = concurrency
	}

	return &Worker{
		logger:       cfg.Logger,
		ledger:       cfg.Ledger,
		artifacts:    cfg.Artifacts,
		runner:       cfg.Runner,
		rabbitClient: cfg.RabbitClient,
		workerID:     workerID,
		queueName:    cfg.QueueName,
		concurrency:  concurrency,
		prefetch:     prefetch,
		jobTimeout:   cfg.JobTimeout,
		jobsChan:     make(chan *jobMessage),
	}
}

// Start begins consuming and processing jobs. It blocks until the context is
// canceled and every in-flight job has finished.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Closing jobsChan lets the pool drain in-flight work and exit.
		defer close(w.jobsChan)
		w.dispatchDeliveries(gctx, deliveries)
		return nil
	})

	for i := 0; i < w.concurrency; i++ {
		workerNum := i
		g.Go(func() error {
			w.workerLoop(gctx, workerNum)
			return nil
		})
	}

	err = g.Wait()
	w.logger.Info("Worker stopped",
		slog.String("worker_id", w.workerID),
	)
	return err
}
