package models

import (
	"time"
)

// HeadToHead summarizes up to the last 20 meetings between the two teams
// of a fixture, reoriented to the fixture's home/away assignment.
type HeadToHead struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	MatchID uint64 `gorm:"not null;uniqueIndex"`

	Meetings int `gorm:"not null"`
	HomeWins int `gorm:"not null"`
	AwayWins int `gorm:"not null"`
	Draws    int `gorm:"not null"`

	AvgGoals float64 `gorm:"not null"`

	LastMeetingAt     *time.Time `gorm:"type:timestamptz"`
	LastMeetingResult string     `gorm:"type:varchar(10)"`

	ComputedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (HeadToHead) TableName() string {
	return "head_to_heads"
}
