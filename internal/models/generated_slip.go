package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GeneratedSlip is one alternative combination produced by the engine or
// the fallback generator. Owned by its MasterSlip; written in a batch and
// never mutated afterward.
type GeneratedSlip struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	MasterSlipID uint64 `gorm:"not null;index"`

	EngineSlipID string `gorm:"type:varchar(100)"`
	Source       string `gorm:"type:varchar(20);not null;default:'engine'"`

	Stake          decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	TotalOdds      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	PossibleReturn decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	ConfidenceScore float64 `gorm:"not null"`
	RiskLevel       string  `gorm:"type:varchar(10);not null"`

	Legs []SlipLeg `gorm:"foreignKey:GeneratedSlipID"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (GeneratedSlip) TableName() string {
	return "generated_slips"
}

// SlipLeg is a single match+market+selection entry within a generated slip.
type SlipLeg struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	GeneratedSlipID uint64 `gorm:"not null;index"`
	Position        int    `gorm:"not null"`

	MatchID   uint64          `gorm:"not null;index"`
	Market    string          `gorm:"type:varchar(50);not null"`
	Selection string          `gorm:"type:varchar(50);not null"`
	Odds      decimal.Decimal `gorm:"type:numeric(10,4);not null"`
}

func (SlipLeg) TableName() string {
	return "slip_legs"
}

const (
	SlipSourceEngine   = "engine"
	SlipSourceFallback = "fallback"
)
