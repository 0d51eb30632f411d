package engine

import (
	"encoding/json"
)

// Request is one outbound engine call. Payload fields follow the engine's
// wire contract; the same struct marshals canonically for fingerprinting.
type Request struct {
	Kind Kind `json:"-"`

	MasterSlipID uint64         `json:"master_slip_id"`
	Stake        float64        `json:"stake"`
	Matches      []RequestMatch `json:"matches"`
	Options      *SlipOptions   `json:"options,omitempty"`
}

type RequestMatch struct {
	MatchID uint64       `json:"match_id"`
	Match   MatchContext `json:"match"`
	Markets MarketsBlock `json:"markets"`
}

type MatchContext struct {
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	League   string `json:"league"`
}

type MarketsBlock struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`

	// Feature context shipped alongside the odds.
	HomeFormRating   float64 `json:"home_form_rating,omitempty"`
	HomeFormMomentum float64 `json:"home_form_momentum,omitempty"`
	AwayFormRating   float64 `json:"away_form_rating,omitempty"`
	AwayFormMomentum float64 `json:"away_form_momentum,omitempty"`
	H2HHomeWins      int     `json:"h2h_home_wins,omitempty"`
	H2HAwayWins      int     `json:"h2h_away_wins,omitempty"`
	H2HDraws         int     `json:"h2h_draws,omitempty"`
}

type SlipOptions struct {
	Strategies  []string `json:"strategies"`
	RiskProfile string   `json:"risk_profile"`
	MinOdds     float64  `json:"min_odds"`
	MaxOdds     float64  `json:"max_odds"`
	MaxSlips    int      `json:"max_slips"`
}

// MarshalPayload renders the request body. encoding/json emits struct
// fields in declaration order, so the bytes are stable for a given request
// and safe to fingerprint.
func (r Request) MarshalPayload() ([]byte, error) {
	return json.Marshal(r)
}

// Response is the engine's reply envelope. GeneratedSlips is populated on
// slip-generation calls, Predictions on prediction calls.
type Response struct {
	Status           string              `json:"status"`
	GeneratedSlips   []SlipPayload       `json:"generated_slips"`
	Predictions      []PredictionPayload `json:"predictions,omitempty"`
	AnalysisMetadata json.RawMessage     `json:"analysis_metadata,omitempty"`
	ProcessingTime   float64             `json:"processing_time,omitempty"`
	Message          string              `json:"message,omitempty"`
}

type PredictionPayload struct {
	MatchID     uint64  `json:"match_id"`
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

type SlipPayload struct {
	SlipID          string       `json:"slip_id"`
	Stake           float64      `json:"stake"`
	TotalOdds       float64      `json:"total_odds"`
	PossibleReturn  float64      `json:"possible_return"`
	RiskLevel       string       `json:"risk_level"`
	ConfidenceScore float64      `json:"confidence_score"`
	Legs            []LegPayload `json:"legs"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

type LegPayload struct {
	MatchID   uint64  `json:"match_id"`
	Market    string  `json:"market"`
	Selection string  `json:"selection"`
	Odds      float64 `json:"odds"`
}
