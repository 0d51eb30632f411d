package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"slipforge/internal/models"
)

type stubStore struct {
	matches     map[uint64]models.Match
	predictions []models.Prediction
	odds        map[uint64]*models.MarketOdds

	inserted *models.MasterSlip
}

func (s *stubStore) ListMatchesByIDs(_ context.Context, ids []uint64) ([]models.Match, error) {
	var out []models.Match
	for _, id := range ids {
		if m, ok := s.matches[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) ListPredictionsByMatchIDs(_ context.Context, _ []uint64) ([]models.Prediction, error) {
	return s.predictions, nil
}

func (s *stubStore) GetMarketOddsByMatchID(_ context.Context, matchID uint64) (*models.MarketOdds, error) {
	return s.odds[matchID], nil
}

func (s *stubStore) InsertMasterSlip(_ context.Context, item *models.MasterSlip) error {
	item.ID = 7
	s.inserted = item
	return nil
}

type stubTrigger struct {
	requested [][]uint64
}

func (s *stubTrigger) RequestPredictions(matchIDs []uint64) {
	s.requested = append(s.requested, matchIDs)
}

func storeWithMatches(ids ...uint64) *stubStore {
	matches := make(map[uint64]models.Match, len(ids))
	for _, id := range ids {
		matches[id] = models.Match{ID: id, HomeTeam: "home-team", AwayTeam: "away-team"}
	}
	return &stubStore{matches: matches, odds: map[uint64]*models.MarketOdds{}}
}

func TestBuildSynthesizesDefaultsAndFallbackOdds(t *testing.T) {
	store := storeWithMatches(1, 2, 3)
	trigger := &stubTrigger{}
	a := &Aggregator{Store: store, Trigger: trigger}

	slip, err := a.Build(context.Background(), []uint64{1, 2, 3}, Options{Stake: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// No predictions stored: every leg is the synthesized default draw at
	// the static fallback odds of 3.0.
	if got := slip.TotalOdds.String(); got != "27" {
		t.Fatalf("total odds = %s, want 27", got)
	}
	if slip.ConfidenceScore != defaultConfidence {
		t.Fatalf("confidence = %v, want %v", slip.ConfidenceScore, defaultConfidence)
	}
	if slip.RiskLevel != models.RiskHigh {
		t.Fatalf("risk = %q, want high", slip.RiskLevel)
	}
	if slip.Status != models.SlipStatusCreated {
		t.Fatalf("status = %q, want created", slip.Status)
	}

	var legs []models.MasterSlipLeg
	if err := json.Unmarshal(slip.Legs, &legs); err != nil {
		t.Fatalf("legs decode: %v", err)
	}
	if len(legs) != 3 {
		t.Fatalf("legs = %d, want 3", len(legs))
	}
	for i, leg := range legs {
		if leg.MatchID != uint64(i+1) {
			t.Fatalf("leg %d match id = %d, input order not preserved", i, leg.MatchID)
		}
		if leg.Selection != models.OutcomeDraw || leg.Odds != 3.0 {
			t.Fatalf("leg %d = %+v, want default draw at 3.0", i, leg)
		}
	}

	if len(trigger.requested) != 1 || len(trigger.requested[0]) != 3 {
		t.Fatalf("expected one prediction request for all 3 matches, got %v", trigger.requested)
	}
	if store.inserted == nil {
		t.Fatalf("master slip was not persisted")
	}
}

func TestBuildUsesStoredPredictionsAndOdds(t *testing.T) {
	store := storeWithMatches(1)
	store.predictions = []models.Prediction{
		{MatchID: 1, Outcome: models.OutcomeHome, Probability: 0.4, Confidence: 0.6},
		{MatchID: 1, Outcome: models.OutcomeAway, Probability: 0.5, Confidence: 0.9},
	}
	store.odds[1] = &models.MarketOdds{
		MatchID: 1,
		Home:    decimal.NewFromFloat(1.8),
		Draw:    decimal.NewFromFloat(3.4),
		Away:    decimal.NewFromFloat(4.2),
	}
	trigger := &stubTrigger{}
	a := &Aggregator{Store: store, Trigger: trigger}

	slip, err := a.Build(context.Background(), []uint64{1}, Options{Stake: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var legs []models.MasterSlipLeg
	if err := json.Unmarshal(slip.Legs, &legs); err != nil {
		t.Fatalf("legs decode: %v", err)
	}
	if legs[0].Selection != models.OutcomeAway {
		t.Fatalf("selection = %q, want the higher-confidence away pick", legs[0].Selection)
	}
	if legs[0].Odds != 4.2 {
		t.Fatalf("odds = %v, want stored 4.2", legs[0].Odds)
	}
	if len(trigger.requested) != 0 {
		t.Fatalf("no prediction request expected when predictions exist")
	}
}

func TestBuildRejectsUnknownMatchIDs(t *testing.T) {
	a := &Aggregator{Store: storeWithMatches(1)}

	_, err := a.Build(context.Background(), []uint64{1, 99}, Options{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	a := &Aggregator{Store: storeWithMatches()}

	_, err := a.Build(context.Background(), nil, Options{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		confidence float64
		want       string
	}{
		{0.95, models.RiskLow},
		{0.70, models.RiskLow},
		{0.69, models.RiskMedium},
		{0.55, models.RiskMedium},
		{0.54, models.RiskHigh},
		{0.0, models.RiskHigh},
	}
	for _, tc := range cases {
		if got := ClassifyRisk(tc.confidence); got != tc.want {
			t.Fatalf("ClassifyRisk(%v) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}
