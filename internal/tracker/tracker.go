package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"slipforge/internal/events"
	"slipforge/internal/models"
)

// MaxErrorMessageLen bounds stored error messages so stack traces cannot
// grow job rows without limit.
const MaxErrorMessageLen = 500

// JobStore is the slice of the repository the tracker needs; satisfied by
// *gormrepository.Store.
type JobStore interface {
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
	UpdateJobStatusCAS(ctx context.Context, id, from, to string, updates map[string]any) (bool, error)
	AdvanceJobProgress(ctx context.Context, id string, progress int) error
	IncrementJobRetry(ctx context.Context, id string) error
}

// Tracker is the only component allowed to move jobs between states. All
// transitions out of pending/running use compare-and-set on the current
// status, so a stale or duplicate delivery after a terminal state is a
// no-op rather than an error.
type Tracker struct {
	Store  JobStore
	Events events.Sink
	Logger *zap.Logger
}

// Canonical pipeline progress checkpoints.
const (
	ProgressValidated  = 10
	ProgressAggregated = 30
	ProgressDispatched = 70
	ProgressPersisted  = 100
)

// Start moves pending → running and stamps started_at. Re-delivery of an
// already-running job is a no-op.
func (t *Tracker) Start(ctx context.Context, job *models.Job) error {
	if t == nil || t.Store == nil || job == nil {
		return nil
	}
	now := time.Now().UTC()
	moved, err := t.Store.UpdateJobStatusCAS(ctx, job.ID, models.JobPending, models.JobRunning, map[string]any{
		"started_at": &now,
	})
	if err != nil {
		return err
	}
	if moved {
		t.emit(events.Event{
			Type:         events.JobStarted,
			JobID:        job.ID,
			MasterSlipID: job.MasterSlipID,
			Queue:        job.Queue,
			At:           now,
		})
	}
	return nil
}

// Progress raises the running job's progress. Progress is monotonic; the
// store ignores writes that would move it backward.
func (t *Tracker) Progress(ctx context.Context, job *models.Job, progress int) error {
	if t == nil || t.Store == nil || job == nil {
		return nil
	}
	if err := t.Store.AdvanceJobProgress(ctx, job.ID, progress); err != nil {
		return err
	}
	t.emit(events.Event{
		Type:         events.JobProgressed,
		JobID:        job.ID,
		MasterSlipID: job.MasterSlipID,
		Queue:        job.Queue,
		Progress:     progress,
		At:           time.Now().UTC(),
	})
	return nil
}

// Retried records a scheduled retry: bumps retry_count on the running job
// and emits JobRetried. The job stays running through the backoff window.
func (t *Tracker) Retried(ctx context.Context, job *models.Job, attempt int, delay time.Duration, cause string) error {
	if t == nil || t.Store == nil || job == nil {
		return nil
	}
	if err := t.Store.IncrementJobRetry(ctx, job.ID); err != nil {
		return err
	}
	t.emit(events.Event{
		Type:         events.JobRetried,
		JobID:        job.ID,
		MasterSlipID: job.MasterSlipID,
		Queue:        job.Queue,
		Attempt:      attempt,
		Delay:        delay,
		Error:        Truncate(cause),
		At:           time.Now().UTC(),
	})
	return nil
}

// Complete moves running → completed with progress 100.
func (t *Tracker) Complete(ctx context.Context, job *models.Job) error {
	return t.finish(ctx, job, models.JobCompleted, events.JobCompleted, "")
}

// Fallback moves running → fallback: the caller still got a result, just a
// degraded one.
func (t *Tracker) Fallback(ctx context.Context, job *models.Job) error {
	return t.finish(ctx, job, models.JobFallback, events.JobFallenBack, "")
}

// Fail moves running → failed with a bounded error message.
func (t *Tracker) Fail(ctx context.Context, job *models.Job, msg string) error {
	return t.finish(ctx, job, models.JobFailed, events.JobFailed, msg)
}

// StorageFailed marks an atomic-write failure; not retried automatically.
func (t *Tracker) StorageFailed(ctx context.Context, job *models.Job, msg string) error {
	return t.finish(ctx, job, models.JobStorageFailed, events.JobFailed, msg)
}

// JobFailed marks a worker-level fatality (panic, abandoned deadline).
func (t *Tracker) JobFailed(ctx context.Context, job *models.Job, msg string) error {
	return t.finish(ctx, job, models.JobJobFailed, events.JobFailed, msg)
}

func (t *Tracker) finish(ctx context.Context, job *models.Job, status string, eventType events.Type, msg string) error {
	if t == nil || t.Store == nil || job == nil {
		return nil
	}
	now := time.Now().UTC()
	updates := map[string]any{}
	switch status {
	case models.JobCompleted, models.JobFallback:
		updates["completed_at"] = &now
		updates["progress"] = ProgressPersisted
	default:
		updates["failed_at"] = &now
	}
	if msg != "" {
		updates["error_message"] = Truncate(msg)
	}

	moved, err := t.Store.UpdateJobStatusCAS(ctx, job.ID, models.JobRunning, status, updates)
	if err != nil {
		return err
	}
	if !moved {
		// Already terminal, or never started; either way this delivery is
		// stale and the transition is dropped.
		if t.Logger != nil {
			t.Logger.Debug("dropped stale job transition",
				zap.String("job_id", job.ID),
				zap.String("to", status),
			)
		}
		return nil
	}
	t.emit(events.Event{
		Type:         eventType,
		JobID:        job.ID,
		MasterSlipID: job.MasterSlipID,
		Queue:        job.Queue,
		Error:        Truncate(msg),
		At:           now,
	})
	return nil
}

func (t *Tracker) emit(e events.Event) {
	if t == nil || t.Events == nil {
		return
	}
	t.Events.Emit(e)
}

// Truncate bounds a message to MaxErrorMessageLen.
func Truncate(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}
