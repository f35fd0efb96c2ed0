package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/listforge/pipeline/internal/ops/dto"
)

// ListWorkers handles GET /api/v1/workers
// Lists worker heartbeat records, most recent first
func (h *JobHandler) ListWorkers(c *gin.Context) {
	heartbeats, err := h.store.ListHeartbeats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list workers", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list workers",
		})
		return
	}

	workers := make([]dto.WorkerDTO, len(heartbeats))
	for i, hb := range heartbeats {
		workers[i] = dto.WorkerDTO{
			WorkerID:      hb.WorkerID,
			Status:        hb.Status,
			LastHeartbeat: hb.LastHeartbeat.Format(time.RFC3339),
			CurrentJobID:  strValue(hb.CurrentJobID),
			JobsCompleted: hb.JobsCompleted,
			JobsFailed:    hb.JobsFailed,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"workers": workers,
	})
}

// SearchDirectories handles GET /api/v1/directories/search
// Searches the submission catalog by directory name
func (h *JobHandler) SearchDirectories(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "q is required",
		})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	dirs, err := h.store.SearchDirectories(c.Request.Context(), term, limit)
	if err != nil {
		h.logger.Error("Failed to search directories",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to search directories",
		})
		return
	}

	resp := make([]dto.DirectoryDTO, len(dirs))
	for i, d := range dirs {
		resp[i] = dto.DirectoryDTO{
			ID:        d.ID,
			Name:      d.Name,
			Category:  d.Category,
			SubmitURL: d.SubmitURL,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"directories": resp,
	})
}
