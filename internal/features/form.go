package features

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"slipforge/internal/models"
)

// Store is the slice of the repository the feature computer needs;
// satisfied by *gormrepository.Store.
type Store interface {
	ListFinishedMatchesByTeam(ctx context.Context, teamID string, before time.Time, limit int) ([]models.Match, error)
	ListFinishedMeetings(ctx context.Context, teamA, teamB string, before time.Time, limit int) ([]models.Match, error)
	UpsertTeamForm(ctx context.Context, item *models.TeamForm) error
	UpsertHeadToHead(ctx context.Context, item *models.HeadToHead) error
}

// Computer derives rolling statistics from historical match records.
// Deterministic for a given data snapshot; the only side effect is the
// idempotent upsert of the computed row.
type Computer struct {
	Store  Store
	Logger *zap.Logger
}

const (
	formWindow     = 5
	momentumWindow = 6
	h2hWindow      = 20

	// neutralRating is the midpoint of the 0-10 scale, used when a team
	// has no history to rate.
	neutralRating = 5.0
)

// TeamForm computes and upserts the form snapshot for one team of the
// fixture. venue is models.VenueHome or models.VenueAway. A team with no
// resolvable identity yields a neutral row instead of failing the
// pipeline.
func (c *Computer) TeamForm(ctx context.Context, match models.Match, venue string) (*models.TeamForm, error) {
	teamID := match.HomeTeam
	if venue == models.VenueAway {
		teamID = match.AwayTeam
	}

	form := &models.TeamForm{
		MatchID:    match.ID,
		TeamID:     teamID,
		Venue:      venue,
		FormRating: neutralRating,
		ComputedAt: time.Now().UTC(),
	}

	if strings.TrimSpace(teamID) == "" {
		if c.Logger != nil {
			c.Logger.Warn("team has no resolvable identity, using neutral form",
				zap.Uint64("match_id", match.ID),
				zap.String("venue", venue),
			)
		}
		return form, c.upsertForm(ctx, form)
	}

	history, err := c.Store.ListFinishedMatchesByTeam(ctx, teamID, match.KickoffAt, momentumWindow)
	if err != nil {
		return nil, err
	}

	window := history
	if len(window) > formWindow {
		window = window[:formWindow]
	}

	var results strings.Builder
	for _, h := range window {
		r := resultFor(h, teamID)
		results.WriteByte(r)
		switch r {
		case 'W':
			form.Wins++
		case 'D':
			form.Draws++
		default:
			form.Losses++
		}
		gf, ga := goalsFor(h, teamID)
		form.GoalsScored += gf
		form.GoalsConceded += ga
	}
	form.Results = results.String()
	form.MatchesPlayed = len(window)

	if form.MatchesPlayed > 0 {
		n := float64(form.MatchesPlayed)
		winRate := float64(form.Wins) / n
		drawRate := float64(form.Draws) / n
		lossRate := float64(form.Losses) / n
		form.FormRating = 8*winRate + 5*drawRate + 2*lossRate
	}

	// Momentum needs a full six matches: the recent three against the
	// prior three, normalized by the nine points a 3-match sweep is worth.
	if len(history) >= momentumWindow {
		recent := pointsFor(history[:3], teamID)
		prior := pointsFor(history[3:6], teamID)
		form.FormMomentum = float64(recent-prior) / 9.0
	}

	return form, c.upsertForm(ctx, form)
}

func (c *Computer) upsertForm(ctx context.Context, form *models.TeamForm) error {
	if c.Store == nil {
		return nil
	}
	return c.Store.UpsertTeamForm(ctx, form)
}

func resultFor(m models.Match, teamID string) byte {
	gf, ga := goalsFor(m, teamID)
	switch {
	case gf > ga:
		return 'W'
	case gf == ga:
		return 'D'
	default:
		return 'L'
	}
}

func goalsFor(m models.Match, teamID string) (scored, conceded int) {
	if m.HomeGoals == nil || m.AwayGoals == nil {
		return 0, 0
	}
	if m.HomeTeam == teamID {
		return *m.HomeGoals, *m.AwayGoals
	}
	return *m.AwayGoals, *m.HomeGoals
}

func pointsFor(matches []models.Match, teamID string) int {
	points := 0
	for _, m := range matches {
		switch resultFor(m, teamID) {
		case 'W':
			points += 3
		case 'D':
			points++
		}
	}
	return points
}
