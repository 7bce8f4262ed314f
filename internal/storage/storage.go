package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/visit-metrics/internal/domain"
	"github.com/google/uuid"
)

// Storage holds every job of the process keyed by job id.
// Jobs live only for the process lifetime.
type Storage struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.Job
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Stats counts stored jobs by status
type Stats struct {
	Ongoing   int `json:"ongoing"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// NewStorage creates a new, empty Storage instance
func NewStorage(logger *slog.Logger) *Storage {
	return &Storage{
		jobs:   make(map[string]*domain.Job),
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateJob allocates a new job in ongoing state and returns a snapshot of it
func (s *Storage) CreateJob(ctx context.Context) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.newID()
	for s.jobs[id] != nil {
		id = s.newID()
	}

	job := &domain.Job{
		JobID:     id,
		Status:    domain.JobStatusOngoing,
		Results:   []domain.ResultRecord{},
		Errors:    []domain.ErrorRecord{},
		CreatedAt: s.now(),
	}
	s.jobs[id] = job
	snapshot := job.Clone()
	s.mu.Unlock()

	s.logger.Debug("Job created",
		slog.String("job_id", id),
	)

	return snapshot, nil
}

// GetJobByID returns a snapshot of the job or domain.ErrJobNotFound
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return job.Clone(), nil
}

// FinalizeJob moves an ongoing job to its terminal status.
// The status is failed when errs is non-empty and completed otherwise.
// A job can be finalized once; later calls return domain.ErrJobAlreadyFinalized
// and leave the job untouched.
func (s *Storage) FinalizeJob(ctx context.Context, jobID string, results []domain.ResultRecord, errs []domain.ErrorRecord) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	if job.Status.IsTerminal() {
		s.logger.Warn("Job finalize ignored - already terminal",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
		)
		return nil, domain.ErrJobAlreadyFinalized
	}

	status := domain.JobStatusCompleted
	if len(errs) > 0 {
		status = domain.JobStatusFailed
	}

	job.Status = status
	job.Results = append([]domain.ResultRecord{}, results...)
	job.Errors = append([]domain.ErrorRecord{}, errs...)
	job.FinalizedAt = s.now()

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
		slog.Int("results", len(job.Results)),
		slog.Int("errors", len(job.Errors)),
	)

	return job.Clone(), nil
}

// PruneFinalized removes terminal jobs finalized before the given time.
// Ongoing jobs are never removed.
func (s *Storage) PruneFinalized(ctx context.Context, before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.FinalizedAt.Before(before) {
			delete(s.jobs, id)
			removed++
		}
	}

	return removed
}

// Stats returns job counts by status
func (s *Storage) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, job := range s.jobs {
		switch job.Status {
		case domain.JobStatusOngoing:
			stats.Ongoing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		}
	}

	return stats
}
