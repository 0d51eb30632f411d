package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"slipforge/internal/models"
)

// Store is the slice of the repository the aggregator needs; satisfied by
// *gormrepository.Store.
type Store interface {
	ListMatchesByIDs(ctx context.Context, ids []uint64) ([]models.Match, error)
	ListPredictionsByMatchIDs(ctx context.Context, ids []uint64) ([]models.Prediction, error)
	GetMarketOddsByMatchID(ctx context.Context, matchID uint64) (*models.MarketOdds, error)
	InsertMasterSlip(ctx context.Context, item *models.MasterSlip) error
}

// PredictionTrigger requests real predictions for matches that had none.
// Best effort and non-blocking: the current aggregation proceeds on the
// synthesized default either way.
type PredictionTrigger interface {
	RequestPredictions(matchIDs []uint64)
}

// ValidationError reports bad input ids. Not retried; surfaced to the
// caller immediately.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Options are the caller-supplied knobs for one aggregation.
type Options struct {
	Name  string
	Stake decimal.Decimal
}

// Synthesized default when a match has no stored prediction.
const (
	defaultOutcome     = models.OutcomeDraw
	defaultProbability = 0.33
	defaultConfidence  = 0.5
)

// Static odds fallback when no market odds are stored for a match.
var fallbackOdds = map[string]decimal.Decimal{
	models.OutcomeHome: decimal.NewFromInt(2),
	models.OutcomeDraw: decimal.NewFromInt(3),
	models.OutcomeAway: decimal.NewFromFloat(2.5),
}

// Aggregator builds the master slip: per match it takes the
// highest-confidence prediction (or synthesizes a default), resolves odds
// from stored markets (or the static fallback), and derives total odds,
// confidence and risk level.
type Aggregator struct {
	Store   Store
	Trigger PredictionTrigger
	Logger  *zap.Logger
}

// Build constructs and persists one MasterSlip for the given match ids.
// Leg order follows the input order. Returns ValidationError when any id
// does not reference an existing match.
func (a *Aggregator) Build(ctx context.Context, matchIDs []uint64, opts Options) (*models.MasterSlip, error) {
	if len(matchIDs) == 0 {
		return nil, &ValidationError{Msg: "no match ids supplied"}
	}

	matches, err := a.Store.ListMatchesByIDs(ctx, matchIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]models.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}
	var missing []uint64
	for _, id := range matchIDs {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown match ids: %v", missing)}
	}

	predictions, err := a.Store.ListPredictionsByMatchIDs(ctx, matchIDs)
	if err != nil {
		return nil, err
	}
	best := make(map[uint64]models.Prediction, len(matchIDs))
	for _, p := range predictions {
		if cur, ok := best[p.MatchID]; !ok || p.Confidence > cur.Confidence {
			best[p.MatchID] = p
		}
	}

	legs := make([]models.MasterSlipLeg, 0, len(matchIDs))
	totalOdds := decimal.NewFromInt(1)
	var needPredictions []uint64

	for _, id := range matchIDs {
		pred, ok := best[id]
		if !ok {
			pred = models.Prediction{
				MatchID:     id,
				Outcome:     defaultOutcome,
				Probability: defaultProbability,
				Confidence:  defaultConfidence,
				Source:      "default",
			}
			needPredictions = append(needPredictions, id)
		}

		odds, err := a.resolveOdds(ctx, id, pred.Outcome)
		if err != nil {
			return nil, err
		}
		totalOdds = totalOdds.Mul(odds)

		oddsF, _ := odds.Float64()
		legs = append(legs, models.MasterSlipLeg{
			MatchID:     id,
			Market:      "1x2",
			Selection:   pred.Outcome,
			Odds:        oddsF,
			Probability: pred.Probability,
			Confidence:  pred.Confidence,
		})
	}

	if len(needPredictions) > 0 && a.Trigger != nil {
		// Fire-and-forget; the fresh predictions benefit the next request.
		a.Trigger.RequestPredictions(needPredictions)
		if a.Logger != nil {
			a.Logger.Info("requested predictions for matches without any",
				zap.Int("matches", len(needPredictions)),
			)
		}
	}

	confidence := geometricMeanConfidence(legs)

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = fmt.Sprintf("slip-%d-legs", len(legs))
	}

	legsJSON, err := json.Marshal(legs)
	if err != nil {
		return nil, err
	}

	slip := &models.MasterSlip{
		Name:            name,
		StakePerLeg:     opts.Stake,
		Legs:            datatypes.JSON(legsJSON),
		TotalOdds:       totalOdds,
		ConfidenceScore: confidence,
		RiskLevel:       ClassifyRisk(confidence),
		Status:          models.SlipStatusCreated,
		CreatedAt:       time.Now().UTC(),
	}
	if err := a.Store.InsertMasterSlip(ctx, slip); err != nil {
		return nil, err
	}
	return slip, nil
}

func (a *Aggregator) resolveOdds(ctx context.Context, matchID uint64, outcome string) (decimal.Decimal, error) {
	stored, err := a.Store.GetMarketOddsByMatchID(ctx, matchID)
	if err != nil {
		return decimal.Zero, err
	}
	if stored != nil {
		switch outcome {
		case models.OutcomeHome:
			return stored.Home, nil
		case models.OutcomeAway:
			return stored.Away, nil
		default:
			return stored.Draw, nil
		}
	}
	if odds, ok := fallbackOdds[outcome]; ok {
		return odds, nil
	}
	return fallbackOdds[models.OutcomeDraw], nil
}

// geometricMeanConfidence is exp(mean(ln c_i)); zero-or-negative inputs are
// clamped to a small positive value so one bad leg cannot zero the mean.
func geometricMeanConfidence(legs []models.MasterSlipLeg) float64 {
	if len(legs) == 0 {
		return 0
	}
	sum := 0.0
	for _, leg := range legs {
		c := leg.Confidence
		if c < 1e-9 {
			c = 1e-9
		}
		sum += math.Log(c)
	}
	return math.Exp(sum / float64(len(legs)))
}

// ClassifyRisk is the strict three-band classifier on geometric-mean
// confidence. Boundary values fall into the safer band.
func ClassifyRisk(confidence float64) string {
	switch {
	case confidence >= 0.70:
		return models.RiskLow
	case confidence >= 0.55:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
