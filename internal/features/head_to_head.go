package features

import (
	"context"
	"time"

	"slipforge/internal/models"
)

// HeadToHead computes and upserts the meeting history for a fixture over
// the last 20 qualifying meetings in either home/away order. Historical
// home/away labels are reoriented onto the current fixture's assignment
// before tallying.
func (c *Computer) HeadToHead(ctx context.Context, match models.Match) (*models.HeadToHead, error) {
	h2h := &models.HeadToHead{
		MatchID:    match.ID,
		ComputedAt: time.Now().UTC(),
	}

	meetings, err := c.Store.ListFinishedMeetings(ctx, match.HomeTeam, match.AwayTeam, match.KickoffAt, h2hWindow)
	if err != nil {
		return nil, err
	}

	totalGoals := 0
	for _, m := range meetings {
		if m.HomeGoals == nil || m.AwayGoals == nil {
			continue
		}
		h2h.Meetings++

		// Goals from the perspective of the current fixture's home team.
		curHomeGoals, curAwayGoals := *m.HomeGoals, *m.AwayGoals
		if m.HomeTeam != match.HomeTeam {
			curHomeGoals, curAwayGoals = curAwayGoals, curHomeGoals
		}

		switch {
		case curHomeGoals > curAwayGoals:
			h2h.HomeWins++
		case curHomeGoals < curAwayGoals:
			h2h.AwayWins++
		default:
			h2h.Draws++
		}
		totalGoals += curHomeGoals + curAwayGoals

		// Most recent finished meeting; meetings arrive newest first.
		if h2h.Meetings == 1 {
			at := m.KickoffAt
			h2h.LastMeetingAt = &at
			switch {
			case curHomeGoals > curAwayGoals:
				h2h.LastMeetingResult = models.OutcomeHome
			case curHomeGoals < curAwayGoals:
				h2h.LastMeetingResult = models.OutcomeAway
			default:
				h2h.LastMeetingResult = models.OutcomeDraw
			}
		}
	}

	if h2h.Meetings > 0 {
		h2h.AvgGoals = float64(totalGoals) / float64(h2h.Meetings)
	}

	if c.Store != nil {
		if err := c.Store.UpsertHeadToHead(ctx, h2h); err != nil {
			return nil, err
		}
	}
	return h2h, nil
}
