package models

import (
	"time"
)

// Prediction is one candidate outcome for a match. The aggregator picks
// the highest-confidence prediction per match.
type Prediction struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	MatchID uint64 `gorm:"not null;index"`

	Outcome     string  `gorm:"type:varchar(10);not null"`
	Probability float64 `gorm:"not null"`
	Confidence  float64 `gorm:"not null;index"`
	Source      string  `gorm:"type:varchar(50);not null;default:'engine'"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Prediction) TableName() string {
	return "predictions"
}

// Outcome values used across predictions, slip legs and market odds.
const (
	OutcomeHome = "home"
	OutcomeDraw = "draw"
	OutcomeAway = "away"
)
