package handler

import (
	"log/slog"

	"github.com/cuongbtq/visit-metrics/internal/storage"
	"github.com/cuongbtq/visit-metrics/internal/worker"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Storage *storage.Storage
	Worker  *worker.Worker
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	storage *storage.Storage
	worker  *worker.Worker
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		storage: deps.Storage,
		worker:  deps.Worker,
	}
}
