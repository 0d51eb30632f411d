package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketOdds holds stored 1X2 odds for a match. Money-like values are
// numeric to avoid float errors.
type MarketOdds struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	MatchID uint64 `gorm:"not null;uniqueIndex"`

	Home decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	Draw decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	Away decimal.Decimal `gorm:"type:numeric(10,4);not null"`

	Bookmaker string    `gorm:"type:varchar(50)"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketOdds) TableName() string {
	return "market_odds"
}
