package models

import (
	"time"
)

// TeamForm is the derived rolling-form snapshot for one team in the
// context of one fixture. Recomputation upserts on (match_id, team_id, venue).
type TeamForm struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	MatchID uint64 `gorm:"not null;uniqueIndex:ux_team_form_key"`
	TeamID  string `gorm:"type:varchar(50);not null;uniqueIndex:ux_team_form_key"`
	Venue   string `gorm:"type:varchar(10);not null;uniqueIndex:ux_team_form_key"`

	// Results is the last-5 sequence, most recent first, e.g. "WWDLW".
	Results       string `gorm:"type:varchar(5);not null;default:''"`
	MatchesPlayed int    `gorm:"not null"`
	Wins          int    `gorm:"not null"`
	Draws         int    `gorm:"not null"`
	Losses        int    `gorm:"not null"`
	GoalsScored   int    `gorm:"not null"`
	GoalsConceded int    `gorm:"not null"`

	// FormRating is 0-10; 5.0 is the neutral default when no history exists.
	FormRating float64 `gorm:"not null"`
	// FormMomentum is in [-1,1]; 0 when fewer than 6 matches exist.
	FormMomentum float64 `gorm:"not null"`

	ComputedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (TeamForm) TableName() string {
	return "team_forms"
}

const (
	VenueHome = "home"
	VenueAway = "away"
)
