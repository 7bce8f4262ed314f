package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/visit-metrics/internal/api/dto"
	"github.com/cuongbtq/visit-metrics/internal/domain"
	"github.com/gin-gonic/gin"
)

const invalidSubmissionMessage = "Count does not match number of visits or missing fields"

// SubmitJob handles POST /api/submit
// Creates a job for the submitted visits and starts processing it in the background
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid submission body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": invalidSubmissionMessage,
		})
		return
	}

	if *req.Count != len(req.Visits) {
		h.logger.Warn("Submission count mismatch",
			slog.Int("count", *req.Count),
			slog.Int("visits", len(req.Visits)),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": invalidSubmissionMessage,
		})
		return
	}

	job, err := h.storage.CreateJob(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.worker.Dispatch(job.JobID, req.ToVisits())

	h.logger.Info("Job submitted",
		slog.String("job_id", job.JobID),
		slog.Int("visits", len(req.Visits)),
	)

	c.JSON(http.StatusCreated, dto.SubmitJobResponse{JobID: job.JobID})
}

// GetJobStatus handles GET /api/status?jobid=<id>
// Errors are included only for failed jobs and results only for completed ones
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Query("jobid")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrJobNotFound) {
			h.logger.Error("Failed to get job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		c.JSON(http.StatusBadRequest, gin.H{})
		return
	}

	body := gin.H{
		"job_id": job.JobID,
		"status": job.Status,
	}

	switch job.Status {
	case domain.JobStatusFailed:
		body["errors"] = dto.NewErrorDTOs(job.Errors)
	case domain.JobStatusCompleted:
		body["results"] = dto.NewResultDTOs(job.Results)
	}

	c.JSON(http.StatusOK, body)
}
