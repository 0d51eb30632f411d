package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slipforge/internal/models"
	"slipforge/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- matches ----------------------------------------------------------------

func (s *Store) GetMatchByID(ctx context.Context, id uint64) (*models.Match, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Match
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMatchesByIDs(ctx context.Context, ids []uint64) ([]models.Match, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.Match
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListFinishedMatchesByTeam(ctx context.Context, teamID string, before time.Time, limit int) ([]models.Match, error) {
	if s == nil || s.db == nil || strings.TrimSpace(teamID) == "" {
		return nil, nil
	}
	var items []models.Match
	err := s.db.WithContext(ctx).
		Where("(home_team = ? OR away_team = ?)", teamID, teamID).
		Where("home_goals IS NOT NULL AND away_goals IS NOT NULL").
		Where("kickoff_at < ?", before).
		Order("kickoff_at desc").
		Limit(normalizeLimit(limit, 6)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListFinishedMeetings(ctx context.Context, teamA, teamB string, before time.Time, limit int) ([]models.Match, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Match
	err := s.db.WithContext(ctx).
		Where("(home_team = ? AND away_team = ?) OR (home_team = ? AND away_team = ?)", teamA, teamB, teamB, teamA).
		Where("home_goals IS NOT NULL AND away_goals IS NOT NULL").
		Where("kickoff_at < ?", before).
		Order("kickoff_at desc").
		Limit(normalizeLimit(limit, 20)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- derived features -------------------------------------------------------

func (s *Store) UpsertTeamForm(ctx context.Context, item *models.TeamForm) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}, {Name: "team_id"}, {Name: "venue"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"results",
			"matches_played",
			"wins",
			"draws",
			"losses",
			"goals_scored",
			"goals_conceded",
			"form_rating",
			"form_momentum",
			"computed_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetTeamForm(ctx context.Context, matchID uint64, teamID, venue string) (*models.TeamForm, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TeamForm
	err := s.db.WithContext(ctx).
		First(&item, "match_id = ? AND team_id = ? AND venue = ?", matchID, teamID, venue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertHeadToHead(ctx context.Context, item *models.HeadToHead) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"meetings",
			"home_wins",
			"away_wins",
			"draws",
			"avg_goals",
			"last_meeting_at",
			"last_meeting_result",
			"computed_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetHeadToHead(ctx context.Context, matchID uint64) (*models.HeadToHead, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.HeadToHead
	err := s.db.WithContext(ctx).First(&item, "match_id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- predictions and odds ---------------------------------------------------

func (s *Store) ListPredictionsByMatchIDs(ctx context.Context, ids []uint64) ([]models.Prediction, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.Prediction
	err := s.db.WithContext(ctx).
		Where("match_id IN ?", ids).
		Order("confidence desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertPrediction(ctx context.Context, item *models.Prediction) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetMarketOddsByMatchID(ctx context.Context, matchID uint64) (*models.MarketOdds, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketOdds
	err := s.db.WithContext(ctx).First(&item, "match_id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- master slips -----------------------------------------------------------

func (s *Store) InsertMasterSlip(ctx context.Context, item *models.MasterSlip) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetMasterSlipByID(ctx context.Context, id uint64) (*models.MasterSlip, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MasterSlip
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateMasterSlipStatus(ctx context.Context, id uint64, status string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.MasterSlip{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *Store) UpdateMasterSlipStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error {
	if tx == nil {
		return s.UpdateMasterSlipStatus(ctx, id, status)
	}
	return tx.WithContext(ctx).
		Model(&models.MasterSlip{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *Store) ListMasterSlips(ctx context.Context, params repository.ListMasterSlipsParams) ([]models.MasterSlip, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.MasterSlip{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.MasterSlip
	if err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- generated slips --------------------------------------------------------

// ReplaceGeneratedSlipsTx removes any prior batch for the master slip and
// writes the new one. Callers run it inside InTx so a partial write rolls
// back as a unit.
func (s *Store) ReplaceGeneratedSlipsTx(ctx context.Context, tx *gorm.DB, masterSlipID uint64, slips []models.GeneratedSlip) error {
	if tx == nil {
		return errors.New("replace generated slips requires a transaction")
	}
	var priorIDs []uint64
	if err := tx.WithContext(ctx).
		Model(&models.GeneratedSlip{}).
		Where("master_slip_id = ?", masterSlipID).
		Pluck("id", &priorIDs).Error; err != nil {
		return err
	}
	if len(priorIDs) > 0 {
		if err := tx.WithContext(ctx).Where("generated_slip_id IN ?", priorIDs).Delete(&models.SlipLeg{}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("id IN ?", priorIDs).Delete(&models.GeneratedSlip{}).Error; err != nil {
			return err
		}
	}
	for i := range slips {
		slips[i].MasterSlipID = masterSlipID
		if err := tx.WithContext(ctx).Create(&slips[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListGeneratedSlipsByMasterSlipID(ctx context.Context, masterSlipID uint64) ([]models.GeneratedSlip, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.GeneratedSlip
	err := s.db.WithContext(ctx).
		Preload("Legs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("master_slip_id = ?", masterSlipID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- jobs -------------------------------------------------------------------

func (s *Store) CreateJob(ctx context.Context, item *models.Job) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Job
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetActiveJobByMasterSlipID(ctx context.Context, masterSlipID uint64) (*models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Job
	err := s.db.WithContext(ctx).
		Where("master_slip_id = ?", masterSlipID).
		Where("status IN ?", []string{models.JobPending, models.JobRunning}).
		Order("created_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateJobStatusCAS moves a job from one status to another only if it is
// still in the expected status. Returns false when the guard did not match,
// which callers treat as a no-op (stale or duplicate delivery).
func (s *Store) UpdateJobStatusCAS(ctx context.Context, id, from, to string, updates map[string]any) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdvanceJobProgress raises progress on a running job; it never moves
// progress backward.
func (s *Store) AdvanceJobProgress(ctx context.Context, id string, progress int) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ? AND progress < ?", id, models.JobRunning, progress).
		Update("progress", progress).Error
}

func (s *Store) IncrementJobRetry(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobRunning).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}

// ExpireStaleJobs fails running jobs whose last update is older than the
// cutoff; used by the maintenance cron.
func (s *Store) ExpireStaleJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status IN ?", []string{models.JobPending, models.JobRunning}).
		Where("updated_at < ?", olderThan).
		Updates(map[string]any{
			"status":        models.JobJobFailed,
			"error_message": "job abandoned: exceeded wall-clock limit",
			"failed_at":     &now,
		})
	return res.RowsAffected, res.Error
}

// --- scheduled retries ------------------------------------------------------

func (s *Store) InsertScheduledRetry(ctx context.Context, item *models.ScheduledRetry) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

// ClaimDueScheduledRetries atomically removes and returns retries whose
// NotBefore has passed. A claimed retry is owned by exactly one caller.
func (s *Store) ClaimDueScheduledRetries(ctx context.Context, now time.Time, limit int) ([]models.ScheduledRetry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var claimed []models.ScheduledRetry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.ScheduledRetry
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("not_before <= ?", now).
			Order("not_before asc").
			Limit(normalizeLimit(limit, 50)).
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]uint64, 0, len(due))
		for _, r := range due {
			ids = append(ids, r.ID)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.ScheduledRetry{}).Error; err != nil {
			return err
		}
		claimed = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
