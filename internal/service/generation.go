package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"slipforge/internal/aggregator"
	"slipforge/internal/config"
	"slipforge/internal/dispatch"
	"slipforge/internal/engine"
	"slipforge/internal/features"
	"slipforge/internal/models"
	"slipforge/internal/persister"
	"slipforge/internal/repository"
	"slipforge/internal/tracker"
	"slipforge/internal/worker"
)

// Enqueuer hands tasks to the worker pool; satisfied by *worker.Pool.
type Enqueuer interface {
	Enqueue(task worker.Task) error
}

const slipGenerationQueue = "slip_generation"

// GenerationService owns the slip-generation pipeline: submission creates
// the master slip and job; Execute runs one attempt of
// validate → aggregate → dispatch → persist for a claimed task.
type GenerationService struct {
	Repo       repository.Repository
	Aggregator *aggregator.Aggregator
	Features   *features.Computer
	Dispatcher *dispatch.Controller
	Persister  *persister.Persister
	Tracker    *tracker.Tracker
	Pool       Enqueuer
	Logger     *zap.Logger
	Config     config.Config
}

// SubmitOptions are the caller-supplied knobs for one generation request.
type SubmitOptions struct {
	Name       string
	Stake      decimal.Decimal
	Strategies []string
}

// SubmitResult is what the API returns for an accepted request.
type SubmitResult struct {
	JobID        string `json:"job_id"`
	MasterSlipID uint64 `json:"master_slip_id"`
	Status       string `json:"status"`
}

// Submit validates input, builds the master slip synchronously and
// enqueues the async generation job.
func (s *GenerationService) Submit(ctx context.Context, matchIDs []uint64, opts SubmitOptions) (*SubmitResult, error) {
	if opts.Stake.LessThanOrEqual(decimal.Zero) {
		opts.Stake = decimal.NewFromFloat(s.Config.Generation.DefaultStake)
	}

	slip, err := s.Aggregator.Build(ctx, matchIDs, aggregator.Options{
		Name:  opts.Name,
		Stake: opts.Stake,
	})
	if err != nil {
		return nil, err
	}

	return s.enqueueJob(ctx, slip.ID)
}

// Regenerate replaces a master slip's generated batch via a fresh job.
// Rejected while another job for the slip is still active, which keeps the
// one-active-job-per-master-slip invariant.
func (s *GenerationService) Regenerate(ctx context.Context, masterSlipID uint64) (*SubmitResult, error) {
	slip, err := s.Repo.GetMasterSlipByID(ctx, masterSlipID)
	if err != nil {
		return nil, err
	}
	if slip == nil {
		return nil, &aggregator.ValidationError{Msg: fmt.Sprintf("unknown master slip id: %d", masterSlipID)}
	}
	return s.enqueueJob(ctx, masterSlipID)
}

func (s *GenerationService) enqueueJob(ctx context.Context, masterSlipID uint64) (*SubmitResult, error) {
	active, err := s.Repo.GetActiveJobByMasterSlipID(ctx, masterSlipID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, &aggregator.ValidationError{
			Msg: fmt.Sprintf("job %s is still active for master slip %d", active.ID, masterSlipID),
		}
	}

	job := &models.Job{
		ID:           uuid.NewString(),
		MasterSlipID: masterSlipID,
		Queue:        slipGenerationQueue,
		Kind:         engine.KindSlipGeneration.String(),
		Status:       models.JobPending,
	}
	if err := s.Repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.Pool.Enqueue(worker.Task{JobID: job.ID, Queue: job.Queue}); err != nil {
		_ = s.Tracker.JobFailed(ctx, job, tracker.Truncate(err.Error()))
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("generation job enqueued",
			zap.String("job_id", job.ID),
			zap.Uint64("master_slip_id", masterSlipID),
		)
	}
	return &SubmitResult{JobID: job.ID, MasterSlipID: masterSlipID, Status: models.JobPending}, nil
}

// Execute runs one pipeline attempt for a claimed task. All outcomes are
// reported through the tracker; Execute itself never fails the worker.
func (s *GenerationService) Execute(ctx context.Context, task worker.Task) {
	job, err := s.Repo.GetJobByID(ctx, task.JobID)
	if err != nil || job == nil {
		if s.Logger != nil {
			s.Logger.Warn("task references unknown job", zap.String("job_id", task.JobID), zap.Error(err))
		}
		return
	}
	if models.JobTerminal(job.Status) {
		// Duplicate or late delivery; terminal states are final.
		return
	}

	// State writes must outlive the task deadline: an attempt that blew its
	// wall clock still has to record its own retry or terminal state, and
	// the pool context is already expired at that point.
	stateCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			_ = s.Tracker.JobFailed(stateCtx, job, tracker.Truncate(fmt.Sprintf("panic: %v", r)))
		}
	}()

	if err := s.Tracker.Start(stateCtx, job); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("job start failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	slip, err := s.Repo.GetMasterSlipByID(ctx, job.MasterSlipID)
	if err != nil {
		_ = s.Tracker.JobFailed(stateCtx, job, tracker.Truncate(err.Error()))
		return
	}
	if slip == nil {
		_ = s.Tracker.Fail(stateCtx, job, fmt.Sprintf("master slip %d does not exist", job.MasterSlipID))
		return
	}
	_ = s.Tracker.Progress(stateCtx, job, tracker.ProgressValidated)

	req, err := s.buildEngineRequest(ctx, slip)
	if err != nil {
		_ = s.Tracker.Fail(stateCtx, job, tracker.Truncate(err.Error()))
		return
	}
	_ = s.Tracker.Progress(stateCtx, job, tracker.ProgressAggregated)

	qcfg := s.Config.QueueByName(job.Queue)
	policy := dispatch.RetryPolicy{MaxRetries: qcfg.MaxRetries, Backoff: qcfg.Backoff}

	resp, err := s.Dispatcher.Dispatch(ctx, *req, task.Attempt, policy)
	if err != nil {
		var retryable *dispatch.RetryableError
		if errors.As(err, &retryable) {
			s.scheduleRetry(stateCtx, job, retryable)
			return
		}
		var exhausted *dispatch.ExhaustedError
		if errors.As(err, &exhausted) {
			_ = s.Tracker.Progress(stateCtx, job, tracker.ProgressDispatched)
			_ = s.Persister.PersistFallback(stateCtx, job, slip)
			return
		}
		_ = s.Tracker.JobFailed(stateCtx, job, tracker.Truncate(err.Error()))
		return
	}
	_ = s.Tracker.Progress(stateCtx, job, tracker.ProgressDispatched)

	_ = s.Persister.PersistEngineResult(stateCtx, job, slip, resp)
}

// scheduleRetry writes the durable retry record and frees the worker; the
// pool's scan loop re-enqueues the job once NotBefore passes.
func (s *GenerationService) scheduleRetry(ctx context.Context, job *models.Job, retryable *dispatch.RetryableError) {
	record := &models.ScheduledRetry{
		JobID:     job.ID,
		Attempt:   retryable.Attempt + 1,
		NotBefore: time.Now().UTC().Add(retryable.Delay),
		LastError: tracker.Truncate(retryable.Err.Error()),
	}
	if err := s.Repo.InsertScheduledRetry(ctx, record); err != nil {
		_ = s.Tracker.JobFailed(ctx, job, tracker.Truncate("retry scheduling failed: "+err.Error()))
		return
	}
	_ = s.Tracker.Retried(ctx, job, retryable.Attempt, retryable.Delay, retryable.Err.Error())
}

// buildEngineRequest recomputes features for every leg's match and shapes
// the composite engine payload.
func (s *GenerationService) buildEngineRequest(ctx context.Context, slip *models.MasterSlip) (*engine.Request, error) {
	var legs []models.MasterSlipLeg
	if err := json.Unmarshal(slip.Legs, &legs); err != nil {
		return nil, fmt.Errorf("master slip %d has malformed legs: %w", slip.ID, err)
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("master slip %d has no legs", slip.ID)
	}

	matchIDs := make([]uint64, 0, len(legs))
	for _, leg := range legs {
		matchIDs = append(matchIDs, leg.MatchID)
	}
	matches, err := s.Repo.ListMatchesByIDs(ctx, matchIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]models.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}

	stake, _ := slip.StakePerLeg.Float64()
	req := &engine.Request{
		Kind:         engine.KindSlipGeneration,
		MasterSlipID: slip.ID,
		Stake:        stake,
		Options: &engine.SlipOptions{
			Strategies:  []string{"balanced", "value", "safe"},
			RiskProfile: s.Config.Generation.RiskProfile,
			MinOdds:     s.Config.Generation.MinOdds,
			MaxOdds:     s.Config.Generation.MaxOdds,
			MaxSlips:    s.Config.Generation.MaxSlips,
		},
	}

	for _, leg := range legs {
		match, ok := byID[leg.MatchID]
		if !ok {
			return nil, fmt.Errorf("match %d referenced by master slip %d does not exist", leg.MatchID, slip.ID)
		}

		markets, err := s.marketsBlock(ctx, match)
		if err != nil {
			return nil, err
		}
		req.Matches = append(req.Matches, engine.RequestMatch{
			MatchID: match.ID,
			Match: engine.MatchContext{
				HomeTeam: match.HomeTeam,
				AwayTeam: match.AwayTeam,
				League:   match.League,
			},
			Markets: markets,
		})
	}
	return req, nil
}

func (s *GenerationService) marketsBlock(ctx context.Context, match models.Match) (engine.MarketsBlock, error) {
	block := engine.MarketsBlock{Home: 2.0, Draw: 3.0, Away: 2.5}

	odds, err := s.Repo.GetMarketOddsByMatchID(ctx, match.ID)
	if err != nil {
		return block, err
	}
	if odds != nil {
		block.Home, _ = odds.Home.Float64()
		block.Draw, _ = odds.Draw.Float64()
		block.Away, _ = odds.Away.Float64()
	}

	if s.Features != nil {
		homeForm, err := s.Features.TeamForm(ctx, match, models.VenueHome)
		if err != nil {
			return block, err
		}
		awayForm, err := s.Features.TeamForm(ctx, match, models.VenueAway)
		if err != nil {
			return block, err
		}
		h2h, err := s.Features.HeadToHead(ctx, match)
		if err != nil {
			return block, err
		}
		block.HomeFormRating = homeForm.FormRating
		block.HomeFormMomentum = homeForm.FormMomentum
		block.AwayFormRating = awayForm.FormRating
		block.AwayFormMomentum = awayForm.FormMomentum
		block.H2HHomeWins = h2h.HomeWins
		block.H2HAwayWins = h2h.AwayWins
		block.H2HDraws = h2h.Draws
	}
	return block, nil
}
