package persister

import (
	"github.com/shopspring/decimal"

	"slipforge/internal/models"
)

// Fallback slip constants. The degraded values are deliberate: flat odds,
// midpoint confidence and high risk make the fallback legible to any
// consumer.
var fallbackLegOdds = decimal.NewFromInt(2)

const fallbackConfidence = 0.5

// BuildFallbackSlip builds the single deterministic slip used when the
// engine is unreachable: every match's home-win outcome at flat 2.0 odds.
// Engine-independent and derived only from the master slip itself.
func BuildFallbackSlip(slip *models.MasterSlip) models.GeneratedSlip {
	legs := slipLegsOf(slip)

	item := models.GeneratedSlip{
		MasterSlipID:    slip.ID,
		Source:          models.SlipSourceFallback,
		Stake:           slip.StakePerLeg,
		TotalOdds:       decimal.NewFromInt(1),
		ConfidenceScore: fallbackConfidence,
		RiskLevel:       models.RiskHigh,
	}
	for i, leg := range legs {
		item.TotalOdds = item.TotalOdds.Mul(fallbackLegOdds)
		item.Legs = append(item.Legs, models.SlipLeg{
			Position:  i,
			MatchID:   leg.MatchID,
			Market:    "1x2",
			Selection: models.OutcomeHome,
			Odds:      fallbackLegOdds,
		})
	}
	item.PossibleReturn = item.Stake.Mul(item.TotalOdds)
	return item
}
