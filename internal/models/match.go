package models

import (
	"time"
)

// Match is an immutable historical fact produced by ingestion.
// The orchestration core only reads it.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	HomeTeam  string    `gorm:"type:varchar(50);not null;index"`
	AwayTeam  string    `gorm:"type:varchar(50);not null;index"`
	League    string    `gorm:"type:varchar(100);index"`
	KickoffAt time.Time `gorm:"type:timestamptz;not null;index"`

	// Final score; nil until the match has been played.
	HomeGoals *int `gorm:"default:null"`
	AwayGoals *int `gorm:"default:null"`

	Status    string    `gorm:"type:varchar(20);not null;default:'scheduled';index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Match) TableName() string {
	return "matches"
}

// Finished reports whether the match has a final result.
func (m Match) Finished() bool {
	return m.HomeGoals != nil && m.AwayGoals != nil
}
