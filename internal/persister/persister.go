package persister

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"slipforge/internal/engine"
	"slipforge/internal/models"
	"slipforge/internal/tracker"
)

// SlipStore is the slice of the repository the persister needs; satisfied
// by *gormrepository.Store.
type SlipStore interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	ReplaceGeneratedSlipsTx(ctx context.Context, tx *gorm.DB, masterSlipID uint64, slips []models.GeneratedSlip) error
	UpdateMasterSlipStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error
}

// StorageError reports an atomic-write failure. Marks the job
// storage_failed; not retried automatically since the root cause is
// usually structural.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage write failed: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Persister writes generated slips and legs as one atomic unit scoped to
// the master slip, then advances job state through the tracker.
type Persister struct {
	Store   SlipStore
	Tracker *tracker.Tracker
	Logger  *zap.Logger

	// MaxSlips bounds the persisted batch even if the engine returns more.
	MaxSlips int
}

// PersistEngineResult stores the engine's slips all-or-nothing and marks
// the job completed. A partial-write failure rolls back, marks the job
// storage_failed and returns StorageError.
func (p *Persister) PersistEngineResult(ctx context.Context, job *models.Job, slip *models.MasterSlip, resp *engine.Response) error {
	batch := p.buildBatch(slip, resp)
	if err := p.writeBatch(ctx, slip.ID, batch, models.SlipStatusGenerated); err != nil {
		serr := &StorageError{Err: err}
		if p.Logger != nil {
			p.Logger.Error("engine result persistence failed",
				zap.String("job_id", job.ID),
				zap.Uint64("master_slip_id", slip.ID),
				zap.Error(err),
			)
		}
		_ = p.Tracker.StorageFailed(ctx, job, serr.Error())
		return serr
	}
	if p.Logger != nil {
		p.Logger.Info("persisted generated slips",
			zap.String("job_id", job.ID),
			zap.Uint64("master_slip_id", slip.ID),
			zap.Int("slips", len(batch)),
		)
	}
	return p.Tracker.Complete(ctx, job)
}

// PersistFallback stores the single deterministic fallback slip and marks
// the job fallback rather than failed: the caller still gets a result.
func (p *Persister) PersistFallback(ctx context.Context, job *models.Job, slip *models.MasterSlip) error {
	fallback := BuildFallbackSlip(slip)
	if err := p.writeBatch(ctx, slip.ID, []models.GeneratedSlip{fallback}, models.SlipStatusFallback); err != nil {
		serr := &StorageError{Err: err}
		_ = p.Tracker.StorageFailed(ctx, job, serr.Error())
		return serr
	}
	return p.Tracker.Fallback(ctx, job)
}

func (p *Persister) writeBatch(ctx context.Context, masterSlipID uint64, batch []models.GeneratedSlip, slipStatus string) error {
	return p.Store.InTx(ctx, func(tx *gorm.DB) error {
		if err := p.Store.ReplaceGeneratedSlipsTx(ctx, tx, masterSlipID, batch); err != nil {
			return err
		}
		return p.Store.UpdateMasterSlipStatusTx(ctx, tx, masterSlipID, slipStatus)
	})
}

func (p *Persister) buildBatch(slip *models.MasterSlip, resp *engine.Response) []models.GeneratedSlip {
	payloads := resp.GeneratedSlips
	if p.MaxSlips > 0 && len(payloads) > p.MaxSlips {
		if p.Logger != nil {
			p.Logger.Warn("truncating engine slip batch",
				zap.Uint64("master_slip_id", slip.ID),
				zap.Int("returned", len(payloads)),
				zap.Int("max", p.MaxSlips),
			)
		}
		payloads = payloads[:p.MaxSlips]
	}

	batch := make([]models.GeneratedSlip, 0, len(payloads))
	for _, payload := range payloads {
		stake := decimal.NewFromFloat(payload.Stake)
		totalOdds := decimal.NewFromFloat(payload.TotalOdds)
		possibleReturn := decimal.NewFromFloat(payload.PossibleReturn)
		if possibleReturn.IsZero() {
			possibleReturn = stake.Mul(totalOdds)
		}

		item := models.GeneratedSlip{
			MasterSlipID:    slip.ID,
			EngineSlipID:    payload.SlipID,
			Source:          models.SlipSourceEngine,
			Stake:           stake,
			TotalOdds:       totalOdds,
			PossibleReturn:  possibleReturn,
			ConfidenceScore: payload.ConfidenceScore,
			RiskLevel:       payload.RiskLevel,
		}
		for i, leg := range payload.Legs {
			item.Legs = append(item.Legs, models.SlipLeg{
				Position:  i,
				MatchID:   leg.MatchID,
				Market:    leg.Market,
				Selection: leg.Selection,
				Odds:      decimal.NewFromFloat(leg.Odds),
			})
		}
		batch = append(batch, item)
	}
	return batch
}

// slipLegsOf decodes the master slip's leg list; bad JSON yields nil.
func slipLegsOf(slip *models.MasterSlip) []models.MasterSlipLeg {
	if slip == nil || len(slip.Legs) == 0 {
		return nil
	}
	var legs []models.MasterSlipLeg
	if err := json.Unmarshal(slip.Legs, &legs); err != nil {
		return nil
	}
	return legs
}
