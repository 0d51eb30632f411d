package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"slipforge/internal/models"
)

type ListMasterSlipsParams struct {
	Status  *string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

// Repository is the full persistence surface used by handlers and the
// job pipeline. Components that only need a slice of it declare their own
// narrow interface which *gormrepository.Store also satisfies.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Matches (read-only to the core).
	GetMatchByID(ctx context.Context, id uint64) (*models.Match, error)
	ListMatchesByIDs(ctx context.Context, ids []uint64) ([]models.Match, error)
	ListFinishedMatchesByTeam(ctx context.Context, teamID string, before time.Time, limit int) ([]models.Match, error)
	ListFinishedMeetings(ctx context.Context, teamA, teamB string, before time.Time, limit int) ([]models.Match, error)

	// Derived features; recomputation overwrites.
	UpsertTeamForm(ctx context.Context, item *models.TeamForm) error
	GetTeamForm(ctx context.Context, matchID uint64, teamID, venue string) (*models.TeamForm, error)
	UpsertHeadToHead(ctx context.Context, item *models.HeadToHead) error
	GetHeadToHead(ctx context.Context, matchID uint64) (*models.HeadToHead, error)

	// Predictions and stored odds.
	ListPredictionsByMatchIDs(ctx context.Context, ids []uint64) ([]models.Prediction, error)
	InsertPrediction(ctx context.Context, item *models.Prediction) error
	GetMarketOddsByMatchID(ctx context.Context, matchID uint64) (*models.MarketOdds, error)

	// Master slips.
	InsertMasterSlip(ctx context.Context, item *models.MasterSlip) error
	GetMasterSlipByID(ctx context.Context, id uint64) (*models.MasterSlip, error)
	UpdateMasterSlipStatus(ctx context.Context, id uint64, status string) error
	UpdateMasterSlipStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error
	ListMasterSlips(ctx context.Context, params ListMasterSlipsParams) ([]models.MasterSlip, error)

	// Generated slips; the batch for a master slip is replaced atomically.
	ReplaceGeneratedSlipsTx(ctx context.Context, tx *gorm.DB, masterSlipID uint64, slips []models.GeneratedSlip) error
	ListGeneratedSlipsByMasterSlipID(ctx context.Context, masterSlipID uint64) ([]models.GeneratedSlip, error)

	// Jobs.
	CreateJob(ctx context.Context, item *models.Job) error
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
	GetActiveJobByMasterSlipID(ctx context.Context, masterSlipID uint64) (*models.Job, error)
	UpdateJobStatusCAS(ctx context.Context, id, from, to string, updates map[string]any) (bool, error)
	AdvanceJobProgress(ctx context.Context, id string, progress int) error
	IncrementJobRetry(ctx context.Context, id string) error
	ExpireStaleJobs(ctx context.Context, olderThan time.Time) (int64, error)

	// Scheduled retries.
	InsertScheduledRetry(ctx context.Context, item *models.ScheduledRetry) error
	ClaimDueScheduledRetries(ctx context.Context, now time.Time, limit int) ([]models.ScheduledRetry, error)
}
