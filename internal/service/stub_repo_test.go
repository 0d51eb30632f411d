package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"slipforge/internal/models"
	"slipforge/internal/repository"
)

// stubRepo is an in-memory repository for pipeline tests.
type stubRepo struct {
	mu sync.Mutex

	matches     map[uint64]models.Match
	masterSlips map[uint64]*models.MasterSlip
	jobs        map[string]*models.Job
	predictions []models.Prediction
	odds        map[uint64]*models.MarketOdds

	generated map[uint64][]models.GeneratedSlip
	retries   []models.ScheduledRetry

	nextSlipID uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		matches:     map[uint64]models.Match{},
		masterSlips: map[uint64]*models.MasterSlip{},
		jobs:        map[string]*models.Job{},
		odds:        map[uint64]*models.MarketOdds{},
		generated:   map[uint64][]models.GeneratedSlip{},
		nextSlipID:  1,
	}
}

func (r *stubRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *stubRepo) GetMatchByID(_ context.Context, id uint64) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.matches[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (r *stubRepo) ListMatchesByIDs(_ context.Context, ids []uint64) ([]models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Match
	for _, id := range ids {
		if m, ok := r.matches[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubRepo) ListFinishedMatchesByTeam(context.Context, string, time.Time, int) ([]models.Match, error) {
	return nil, nil
}

func (r *stubRepo) ListFinishedMeetings(context.Context, string, string, time.Time, int) ([]models.Match, error) {
	return nil, nil
}

func (r *stubRepo) UpsertTeamForm(context.Context, *models.TeamForm) error { return nil }

func (r *stubRepo) GetTeamForm(context.Context, uint64, string, string) (*models.TeamForm, error) {
	return nil, nil
}

func (r *stubRepo) UpsertHeadToHead(context.Context, *models.HeadToHead) error { return nil }

func (r *stubRepo) GetHeadToHead(context.Context, uint64) (*models.HeadToHead, error) {
	return nil, nil
}

func (r *stubRepo) ListPredictionsByMatchIDs(context.Context, []uint64) ([]models.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.predictions, nil
}

func (r *stubRepo) InsertPrediction(_ context.Context, item *models.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions = append(r.predictions, *item)
	return nil
}

func (r *stubRepo) GetMarketOddsByMatchID(_ context.Context, matchID uint64) (*models.MarketOdds, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.odds[matchID], nil
}

func (r *stubRepo) InsertMasterSlip(ctx context.Context, item *models.MasterSlip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = r.nextSlipID
	r.nextSlipID++
	cp := *item
	r.masterSlips[item.ID] = &cp
	return nil
}

func (r *stubRepo) GetMasterSlipByID(_ context.Context, id uint64) (*models.MasterSlip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.masterSlips[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *stubRepo) UpdateMasterSlipStatus(_ context.Context, id uint64, status string) error {
	return r.UpdateMasterSlipStatusTx(context.Background(), nil, id, status)
}

func (r *stubRepo) UpdateMasterSlipStatusTx(ctx context.Context, _ *gorm.DB, id uint64, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.masterSlips[id]; ok {
		s.Status = status
	}
	return nil
}

func (r *stubRepo) ListMasterSlips(context.Context, repository.ListMasterSlipsParams) ([]models.MasterSlip, error) {
	return nil, nil
}

func (r *stubRepo) ReplaceGeneratedSlipsTx(ctx context.Context, _ *gorm.DB, masterSlipID uint64, slips []models.GeneratedSlip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generated[masterSlipID] = slips
	return nil
}

func (r *stubRepo) ListGeneratedSlipsByMasterSlipID(_ context.Context, masterSlipID uint64) ([]models.GeneratedSlip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generated[masterSlipID], nil
}

func (r *stubRepo) CreateJob(ctx context.Context, item *models.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.jobs[item.ID] = &cp
	return nil
}

func (r *stubRepo) GetJobByID(_ context.Context, id string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (r *stubRepo) GetActiveJobByMasterSlipID(_ context.Context, masterSlipID uint64) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.MasterSlipID == masterSlipID && !models.JobTerminal(j.Status) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) UpdateJobStatusCAS(ctx context.Context, id, from, to string, updates map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	if p, ok := updates["progress"].(int); ok {
		j.Progress = p
	}
	if msg, ok := updates["error_message"].(string); ok {
		j.ErrorMessage = msg
	}
	return true, nil
}

func (r *stubRepo) AdvanceJobProgress(ctx context.Context, id string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok && j.Status == models.JobRunning && j.Progress < progress {
		j.Progress = progress
	}
	return nil
}

func (r *stubRepo) IncrementJobRetry(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.RetryCount++
	}
	return nil
}

func (r *stubRepo) ExpireStaleJobs(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *stubRepo) InsertScheduledRetry(ctx context.Context, item *models.ScheduledRetry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, *item)
	return nil
}

func (r *stubRepo) ClaimDueScheduledRetries(context.Context, time.Time, int) ([]models.ScheduledRetry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.retries
	r.retries = nil
	return out, nil
}

var _ repository.Repository = (*stubRepo)(nil)
