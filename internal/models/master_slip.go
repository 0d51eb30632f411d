package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MasterSlip is the aggregation unit submitted for alternative-slip
// generation. Immutable after creation except status, which only the job
// pipeline writes.
type MasterSlip struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null"`

	StakePerLeg decimal.Decimal `gorm:"type:numeric(20,4);not null"`

	// Legs is the ordered list of {match_id, market, selection, odds,
	// probability, confidence} tuples chosen at aggregation time.
	Legs datatypes.JSON `gorm:"type:jsonb;not null"`

	// TotalOdds is the product of leg odds, frozen at creation.
	TotalOdds       decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	ConfidenceScore float64         `gorm:"not null"`
	RiskLevel       string          `gorm:"type:varchar(10);not null"`

	Status string `gorm:"type:varchar(20);not null;default:'created';index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MasterSlip) TableName() string {
	return "master_slips"
}

// MasterSlipLeg is the JSON shape of one entry in MasterSlip.Legs.
type MasterSlipLeg struct {
	MatchID     uint64  `json:"match_id"`
	Market      string  `json:"market"`
	Selection   string  `json:"selection"`
	Odds        float64 `json:"odds"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

const (
	SlipStatusCreated   = "created"
	SlipStatusGenerated = "generated"
	SlipStatusFallback  = "fallback"
	SlipStatusFailed    = "failed"
)
