package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"slipforge/internal/dispatch"
	"slipforge/internal/engine"
	"slipforge/internal/models"
	"slipforge/internal/repository"
)

// PredictionTriggerService fires best-effort prediction requests for
// matches the aggregator found no predictions for. It never blocks the
// aggregation that triggered it; fresh predictions land in time for the
// next request.
type PredictionTriggerService struct {
	Repo       repository.Repository
	Dispatcher *dispatch.Controller
	Logger     *zap.Logger

	// Timeout bounds the background call independent of any request
	// context.
	Timeout time.Duration
}

func (s *PredictionTriggerService) RequestPredictions(matchIDs []uint64) {
	if s == nil || s.Dispatcher == nil || len(matchIDs) == 0 {
		return
	}
	go s.run(matchIDs)
}

func (s *PredictionTriggerService) run(matchIDs []uint64) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	matches, err := s.Repo.ListMatchesByIDs(ctx, matchIDs)
	if err != nil || len(matches) == 0 {
		return
	}

	req := engine.Request{Kind: engine.KindPredictions}
	for _, m := range matches {
		req.Matches = append(req.Matches, engine.RequestMatch{
			MatchID: m.ID,
			Match: engine.MatchContext{
				HomeTeam: m.HomeTeam,
				AwayTeam: m.AwayTeam,
				League:   m.League,
			},
		})
	}

	// Single attempt; a miss here costs nothing but staleness.
	resp, err := s.Dispatcher.Dispatch(ctx, req, 0, dispatch.RetryPolicy{MaxRetries: 1})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("background prediction request failed", zap.Error(err))
		}
		return
	}

	inserted := 0
	for _, p := range resp.Predictions {
		item := &models.Prediction{
			MatchID:     p.MatchID,
			Outcome:     p.Outcome,
			Probability: p.Probability,
			Confidence:  p.Confidence,
			Source:      "engine",
		}
		if err := s.Repo.InsertPrediction(ctx, item); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("prediction insert failed", zap.Uint64("match_id", p.MatchID), zap.Error(err))
			}
			continue
		}
		inserted++
	}
	if s.Logger != nil && inserted > 0 {
		s.Logger.Info("background predictions stored", zap.Int("predictions", inserted))
	}
}
