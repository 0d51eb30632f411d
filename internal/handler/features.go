package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slipforge/internal/features"
	"slipforge/internal/models"
	"slipforge/internal/repository"
)

type FeatureHandler struct {
	Repo     repository.Repository
	Computer *features.Computer
	Logger   *zap.Logger
}

func (h *FeatureHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/matches/:id/features", h.get)
}

// get recomputes and returns the feature set for a match: both teams'
// form plus the head-to-head history.
func (h *FeatureHandler) get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid match id", nil)
		return
	}
	match, err := h.Repo.GetMatchByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, "lookup failed", nil)
		return
	}
	if match == nil {
		Error(c, http.StatusNotFound, "match not found", nil)
		return
	}

	homeForm, err := h.Computer.TeamForm(c.Request.Context(), *match, models.VenueHome)
	if err != nil {
		h.fail(c, "home form computation failed", err)
		return
	}
	awayForm, err := h.Computer.TeamForm(c.Request.Context(), *match, models.VenueAway)
	if err != nil {
		h.fail(c, "away form computation failed", err)
		return
	}
	h2h, err := h.Computer.HeadToHead(c.Request.Context(), *match)
	if err != nil {
		h.fail(c, "head-to-head computation failed", err)
		return
	}

	Ok(c, gin.H{
		"match_id":     match.ID,
		"home_form":    homeForm,
		"away_form":    awayForm,
		"head_to_head": h2h,
	}, nil)
}

func (h *FeatureHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg, nil)
}
