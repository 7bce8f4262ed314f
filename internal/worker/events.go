package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/visit-metrics/internal/domain"
)

// EventJobFinalized is emitted once per job when it reaches a terminal status
const EventJobFinalized = "job.finalized"

// JobEvent is the message body published for job lifecycle events
type JobEvent struct {
	Type        string        `json:"type"`
	JobID       string        `json:"job_id"`
	Status      domain.Status `json:"status"`
	ResultCount int           `json:"result_count"`
	ErrorCount  int           `json:"error_count"`
	FinalizedAt time.Time     `json:"finalized_at"`
}

// publishFinalized publishes a job.finalized event. Publish failures never affect the job.
func (w *Worker) publishFinalized(ctx context.Context, job *domain.Job) {
	if w.publisher == nil {
		return
	}

	body, err := json.Marshal(JobEvent{
		Type:        EventJobFinalized,
		JobID:       job.JobID,
		Status:      job.Status,
		ResultCount: len(job.Results),
		ErrorCount:  len(job.Errors),
		FinalizedAt: job.FinalizedAt,
	})
	if err != nil {
		w.logger.Error("Failed to marshal job event",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := w.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		w.logger.Error("Failed to publish job event",
			slog.String("job_id", job.JobID),
			slog.String("event", EventJobFinalized),
			slog.String("error", err.Error()),
		)
	}
}
