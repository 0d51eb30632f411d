package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"slipforge/internal/models"
	"slipforge/internal/repository"
)

type JobHandler struct {
	Repo repository.Repository
}

func (h *JobHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/jobs/:id", h.get)
}

// jobView is the read-only job surface exposed to callers.
type jobView struct {
	JobID        string `json:"job_id"`
	MasterSlipID uint64 `json:"master_slip_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	Results      any    `json:"results,omitempty"`
}

func (h *JobHandler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid job id", nil)
		return
	}
	job, err := h.Repo.GetJobByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, "lookup failed", nil)
		return
	}
	if job == nil {
		Error(c, http.StatusNotFound, "job not found", nil)
		return
	}

	view := jobView{
		JobID:        job.ID,
		MasterSlipID: job.MasterSlipID,
		Status:       job.Status,
		Progress:     job.Progress,
		RetryCount:   job.RetryCount,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status == models.JobCompleted || job.Status == models.JobFallback {
		results, err := h.Repo.ListGeneratedSlipsByMasterSlipID(c.Request.Context(), job.MasterSlipID)
		if err == nil {
			view.Results = results
		}
	}
	Ok(c, view, nil)
}
