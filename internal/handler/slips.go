package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"slipforge/internal/aggregator"
	"slipforge/internal/repository"
	"slipforge/internal/service"
)

type SlipHandler struct {
	Service *service.GenerationService
	Repo    repository.Repository
	Logger  *zap.Logger
}

func (h *SlipHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/slips")
	group.POST("/generate", h.generate)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/regenerate", h.regenerate)
}

type generateRequest struct {
	MatchIDs []uint64 `json:"match_ids" binding:"required,min=1"`
	Stake    float64  `json:"stake"`
	Name     string   `json:"name"`
}

func (h *SlipHandler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	result, err := h.Service.Submit(c.Request.Context(), req.MatchIDs, service.SubmitOptions{
		Name:  strings.TrimSpace(req.Name),
		Stake: decimal.NewFromFloat(req.Stake),
	})
	if err != nil {
		var verr *aggregator.ValidationError
		if errors.As(err, &verr) {
			Error(c, http.StatusUnprocessableEntity, verr.Msg, nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("slip generation submit failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "submit failed", nil)
		return
	}
	Accepted(c, result)
}

func (h *SlipHandler) regenerate(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid slip id", nil)
		return
	}
	result, err := h.Service.Regenerate(c.Request.Context(), id)
	if err != nil {
		var verr *aggregator.ValidationError
		if errors.As(err, &verr) {
			Error(c, http.StatusConflict, verr.Msg, nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("slip regenerate failed", zap.Uint64("master_slip_id", id), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "regenerate failed", nil)
		return
	}
	Accepted(c, result)
}

func (h *SlipHandler) get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid slip id", nil)
		return
	}
	slip, err := h.Repo.GetMasterSlipByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, "lookup failed", nil)
		return
	}
	if slip == nil {
		Error(c, http.StatusNotFound, "master slip not found", nil)
		return
	}
	generated, err := h.Repo.ListGeneratedSlipsByMasterSlipID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, "lookup failed", nil)
		return
	}
	Ok(c, gin.H{
		"master_slip":     slip,
		"generated_slips": generated,
	}, nil)
}

func (h *SlipHandler) list(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}
	items, err := h.Repo.ListMasterSlips(c.Request.Context(), repository.ListMasterSlipsParams{
		Status: statusPtr,
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, "list failed", nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	v := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return fallback
		}
		v = v*10 + int(r-'0')
	}
	return v
}
