package features

import (
	"context"
	"testing"
	"time"

	"slipforge/internal/models"
)

type stubStore struct {
	history  []models.Match
	meetings []models.Match

	historyCalls int
	forms        []models.TeamForm
	h2hs         []models.HeadToHead
}

func (s *stubStore) ListFinishedMatchesByTeam(_ context.Context, _ string, _ time.Time, limit int) ([]models.Match, error) {
	s.historyCalls++
	if len(s.history) > limit {
		return s.history[:limit], nil
	}
	return s.history, nil
}

func (s *stubStore) ListFinishedMeetings(_ context.Context, _, _ string, _ time.Time, limit int) ([]models.Match, error) {
	if len(s.meetings) > limit {
		return s.meetings[:limit], nil
	}
	return s.meetings, nil
}

func (s *stubStore) UpsertTeamForm(_ context.Context, item *models.TeamForm) error {
	s.forms = append(s.forms, *item)
	return nil
}

func (s *stubStore) UpsertHeadToHead(_ context.Context, item *models.HeadToHead) error {
	s.h2hs = append(s.h2hs, *item)
	return nil
}

func finished(home, away string, homeGoals, awayGoals int, daysAgo int) models.Match {
	hg, ag := homeGoals, awayGoals
	return models.Match{
		HomeTeam:  home,
		AwayTeam:  away,
		HomeGoals: &hg,
		AwayGoals: &ag,
		KickoffAt: time.Now().UTC().AddDate(0, 0, -daysAgo),
		Status:    "finished",
	}
}

func fixture(home, away string) models.Match {
	return models.Match{
		ID:        42,
		HomeTeam:  home,
		AwayTeam:  away,
		KickoffAt: time.Now().UTC().AddDate(0, 0, 1),
	}
}

func TestTeamFormAllWins(t *testing.T) {
	store := &stubStore{history: []models.Match{
		finished("arsenal", "spurs", 2, 0, 1),
		finished("chelsea", "arsenal", 0, 1, 8),
		finished("arsenal", "leeds", 3, 1, 15),
		finished("wolves", "arsenal", 1, 2, 22),
		finished("arsenal", "fulham", 4, 0, 29),
	}}
	c := &Computer{Store: store}

	form, err := c.TeamForm(context.Background(), fixture("arsenal", "spurs"), models.VenueHome)
	if err != nil {
		t.Fatalf("TeamForm: %v", err)
	}
	if form.Wins != 5 || form.Draws != 0 || form.Losses != 0 {
		t.Fatalf("got W%d D%d L%d, want 5/0/0", form.Wins, form.Draws, form.Losses)
	}
	if form.FormRating != 8.0 {
		t.Fatalf("rating = %v, want 8.0", form.FormRating)
	}
	if form.Results != "WWWWW" {
		t.Fatalf("results = %q, want WWWWW", form.Results)
	}
	if len(store.forms) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.forms))
	}
}

func TestTeamFormNeutralWithoutHistory(t *testing.T) {
	c := &Computer{Store: &stubStore{}}

	form, err := c.TeamForm(context.Background(), fixture("newpromoted", "spurs"), models.VenueHome)
	if err != nil {
		t.Fatalf("TeamForm: %v", err)
	}
	if form.FormRating != 5.0 {
		t.Fatalf("rating = %v, want neutral 5.0", form.FormRating)
	}
	if form.MatchesPlayed != 0 || form.FormMomentum != 0 {
		t.Fatalf("expected empty snapshot, got %+v", form)
	}
}

func TestTeamFormNeutralWithoutTeamID(t *testing.T) {
	store := &stubStore{history: []models.Match{finished("x", "y", 1, 0, 1)}}
	c := &Computer{Store: store}

	form, err := c.TeamForm(context.Background(), fixture("", "spurs"), models.VenueHome)
	if err != nil {
		t.Fatalf("TeamForm: %v", err)
	}
	if form.FormRating != 5.0 {
		t.Fatalf("rating = %v, want neutral 5.0", form.FormRating)
	}
	if store.historyCalls != 0 {
		t.Fatalf("history should not be queried for an unresolvable team")
	}
}

func TestTeamFormMomentum(t *testing.T) {
	// Recent three wins, prior three losses: momentum (9-0)/9 = 1.
	store := &stubStore{history: []models.Match{
		finished("arsenal", "a", 1, 0, 1),
		finished("arsenal", "b", 2, 1, 8),
		finished("arsenal", "c", 1, 0, 15),
		finished("arsenal", "d", 0, 1, 22),
		finished("arsenal", "e", 0, 2, 29),
		finished("arsenal", "f", 1, 3, 36),
	}}
	c := &Computer{Store: store}

	form, err := c.TeamForm(context.Background(), fixture("arsenal", "spurs"), models.VenueHome)
	if err != nil {
		t.Fatalf("TeamForm: %v", err)
	}
	if form.FormMomentum != 1.0 {
		t.Fatalf("momentum = %v, want 1.0", form.FormMomentum)
	}
	// The rating window is the most recent five: WWWLL.
	if form.MatchesPlayed != 5 {
		t.Fatalf("window = %d, want 5", form.MatchesPlayed)
	}
	want := 8*3.0/5 + 2*2.0/5
	if form.FormRating != want {
		t.Fatalf("rating = %v, want %v", form.FormRating, want)
	}
}

func TestHeadToHeadReorientsHistoricalVenues(t *testing.T) {
	// Two meetings: arsenal won at home 2-0, and won away 0-1. Both must
	// count as wins for the current fixture's home side (arsenal).
	store := &stubStore{meetings: []models.Match{
		finished("arsenal", "spurs", 2, 0, 30),
		finished("spurs", "arsenal", 0, 1, 200),
	}}
	c := &Computer{Store: store}

	h2h, err := c.HeadToHead(context.Background(), fixture("arsenal", "spurs"))
	if err != nil {
		t.Fatalf("HeadToHead: %v", err)
	}
	if h2h.Meetings != 2 {
		t.Fatalf("meetings = %d, want 2", h2h.Meetings)
	}
	if h2h.HomeWins != 2 || h2h.AwayWins != 0 || h2h.Draws != 0 {
		t.Fatalf("got H%d A%d D%d, want 2/0/0", h2h.HomeWins, h2h.AwayWins, h2h.Draws)
	}
	if h2h.AvgGoals != 1.5 {
		t.Fatalf("avg goals = %v, want 1.5", h2h.AvgGoals)
	}
	if h2h.LastMeetingResult != models.OutcomeHome {
		t.Fatalf("last meeting result = %q, want %q", h2h.LastMeetingResult, models.OutcomeHome)
	}
	if len(store.h2hs) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.h2hs))
	}
}

func TestHeadToHeadSkipsUnfinishedMeetings(t *testing.T) {
	unfinished := models.Match{HomeTeam: "arsenal", AwayTeam: "spurs"}
	store := &stubStore{meetings: []models.Match{
		unfinished,
		finished("arsenal", "spurs", 1, 1, 30),
	}}
	c := &Computer{Store: store}

	h2h, err := c.HeadToHead(context.Background(), fixture("arsenal", "spurs"))
	if err != nil {
		t.Fatalf("HeadToHead: %v", err)
	}
	if h2h.Meetings != 1 || h2h.Draws != 1 {
		t.Fatalf("got %+v, want exactly the finished draw", h2h)
	}
	// The last-meeting fields come from the most recent finished meeting,
	// not the raw head of the list.
	if h2h.LastMeetingResult != models.OutcomeDraw {
		t.Fatalf("last meeting result = %q, want %q", h2h.LastMeetingResult, models.OutcomeDraw)
	}
	if h2h.LastMeetingAt == nil {
		t.Fatalf("last meeting time not set")
	}
}
