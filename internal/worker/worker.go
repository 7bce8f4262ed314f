package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cuongbtq/visit-metrics/internal/domain"
)

// JobStore is the part of the job storage the worker writes to
type JobStore interface {
	FinalizeJob(ctx context.Context, jobID string, results []domain.ResultRecord, errs []domain.ErrorRecord) (*domain.Job, error)
}

// StoreDirectory resolves store ids to store metadata
type StoreDirectory interface {
	Lookup(storeID string) (domain.StoreRecord, bool)
}

// ImageResolver turns an image URL into its perimeter
type ImageResolver interface {
	Resolve(ctx context.Context, url string) (int, error)
}

// EventPublisher delivers job lifecycle events to an external broker
type EventPublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Config holds worker configuration
type Config struct {
	Logger    *slog.Logger
	Storage   JobStore
	Directory StoreDirectory
	Resolver  ImageResolver
	Publisher EventPublisher // optional
}

// Worker runs submitted jobs in the background, one goroutine per job
type Worker struct {
	logger    *slog.Logger
	storage   JobStore
	directory StoreDirectory
	resolver  ImageResolver
	publisher EventPublisher
	wg        sync.WaitGroup
	inFlight  atomic.Int64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:    cfg.Logger,
		storage:   cfg.Storage,
		directory: cfg.Directory,
		resolver:  cfg.Resolver,
		publisher: cfg.Publisher,
	}
}

// Dispatch starts processing a job and returns immediately.
// The job runs detached from the caller's context and always reaches a terminal state.
func (w *Worker) Dispatch(jobID string, visits []domain.Visit) {
	w.wg.Add(1)
	w.inFlight.Add(1)

	go func() {
		defer w.wg.Done()
		defer w.inFlight.Add(-1)

		w.processJob(context.Background(), jobID, visits)
	}()

	w.logger.Debug("Job dispatched",
		slog.String("job_id", jobID),
		slog.Int("visits", len(visits)),
	)
}

// InFlight returns the number of jobs currently being processed
func (w *Worker) InFlight() int {
	return int(w.inFlight.Load())
}

// Stop waits for in-flight jobs to finish or for ctx to expire
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping worker...",
		slog.Int("in_flight", w.InFlight()),
	)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Worker shutdown timeout exceeded",
			slog.Int("in_flight", w.InFlight()),
		)
		return ctx.Err()
	}
}
