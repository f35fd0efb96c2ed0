package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/listforge/pipeline/internal/domain"
	"github.com/listforge/pipeline/internal/ops/dto"
	"github.com/listforge/pipeline/internal/store"
)

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	if req.Status != "" && !domain.ValidJobStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status filter",
		})
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := store.JobFilter{
		CustomerID: req.CustomerID,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		cursorObj := store.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		}
		nextCursor, err = EncodeJobCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// ListJobResults handles GET /api/v1/jobs/:job_id/results
// Lists per-directory submission outcomes for a job
func (h *JobHandler) ListJobResults(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	results, err := h.store.ListJobResults(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to list job results", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list job results",
		})
		return
	}

	resp := make([]dto.JobResultDTO, len(results))
	for i, r := range results {
		resp[i] = dto.JobResultDTO{
			ID:             r.ID,
			JobID:          r.JobID,
			UnitName:       r.UnitName,
			Status:         r.Status,
			IdempotencyKey: r.IdempotencyKey,
			ErrorMessage:   strValue(r.ErrorMessage),
			CreatedAt:      r.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":  jobID,
		"results": resp,
	})
}

// ListJobHistory handles GET /api/v1/jobs/:job_id/history
// Returns the audit trail for a job in append order
func (h *JobHandler) ListJobHistory(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	events, err := h.store.ListHistory(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to list job history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list job history",
		})
		return
	}

	resp := make([]dto.HistoryEventDTO, len(events))
	for i, e := range events {
		resp[i] = dto.HistoryEventDTO{
			ID:        e.ID,
			JobID:     e.JobID,
			UnitName:  strValue(e.UnitName),
			Event:     e.Event,
			Payload:   string(e.Payload),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"events": resp,
	})
}

// jobIDParam extracts and validates the job_id path parameter
func (h *JobHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id is required",
		})
		return "", false
	}

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}

	return jobID, true
}

func toJobDTO(job *store.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:        job.ID,
		CustomerID:   job.CustomerID,
		UnitCount:    job.UnitCount,
		Priority:     job.Priority,
		Status:       job.Status,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		ErrorMessage: strValue(job.ErrorMessage),
	}
	if job.StartedAt != nil {
		d.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return d
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
