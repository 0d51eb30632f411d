package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"slipforge/internal/config"
	"slipforge/internal/models"
)

// Task is one unit of work: run the generation pipeline for a job. A
// retry re-enters the pool as a fresh task with a bumped attempt.
type Task struct {
	JobID   string
	Queue   string
	Attempt int
}

// Executor runs the pipeline for one task. Implementations own all job
// state reporting; the pool only bounds concurrency and wall clock.
type Executor interface {
	Execute(ctx context.Context, task Task)
}

// RetryStore is the slice of the repository the retry scan loop needs;
// satisfied by *gormrepository.Store.
type RetryStore interface {
	ClaimDueScheduledRetries(ctx context.Context, now time.Time, limit int) ([]models.ScheduledRetry, error)
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
}

// Pool runs a bounded set of workers per named queue, queues ordered by
// static priority. A job is claimed by exactly one worker; steps within a
// job run sequentially, jobs across workers run in parallel.
type Pool struct {
	Queues []config.QueueConfig
	Exec   Executor
	Store  RetryStore
	Logger *zap.Logger

	ScanInterval time.Duration
	ClaimBatch   int
	QueueDepth   int

	mu    sync.RWMutex
	chans map[string]chan Task
}

// Run starts all workers and the retry scan loop, then blocks until the
// context is canceled.
func (p *Pool) Run(ctx context.Context) error {
	if p == nil || p.Exec == nil || len(p.Queues) == 0 {
		return nil
	}

	queues := make([]config.QueueConfig, len(p.Queues))
	copy(queues, p.Queues)
	sort.SliceStable(queues, func(i, j int) bool { return queues[i].Priority > queues[j].Priority })

	depth := p.QueueDepth
	if depth <= 0 {
		depth = 256
	}

	p.mu.Lock()
	p.chans = make(map[string]chan Task, len(queues))
	for _, q := range queues {
		p.chans[q.Name] = make(chan Task, depth)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		q := q
		workers := q.Workers
		if workers <= 0 {
			workers = 1
		}
		ch := p.chans[q.Name]
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.runWorker(ctx, q, ch)
			}()
		}
		if p.Logger != nil {
			p.Logger.Info("queue workers started",
				zap.String("queue", q.Name),
				zap.Int("priority", q.Priority),
				zap.Int("workers", workers),
				zap.Duration("timeout", q.Timeout),
			)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runRetryScan(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Enqueue hands a task to its queue. Unknown queue names land on
// "default". Returns an error when the queue buffer is full rather than
// blocking the caller.
func (p *Pool) Enqueue(task Task) error {
	p.mu.RLock()
	ch, ok := p.chans[task.Queue]
	if !ok {
		ch = p.chans["default"]
	}
	p.mu.RUnlock()
	if ch == nil {
		return fmt.Errorf("no queue accepts task for job %s", task.JobID)
	}
	select {
	case ch <- task:
		return nil
	default:
		return fmt.Errorf("queue %s is full", task.Queue)
	}
}

func (p *Pool) runWorker(ctx context.Context, q config.QueueConfig, ch <-chan Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-ch:
			p.runTask(ctx, q, task)
		}
	}
}

func (p *Pool) runTask(ctx context.Context, q config.QueueConfig, task Task) {
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil && p.Logger != nil {
			p.Logger.Error("worker panic recovered",
				zap.String("queue", q.Name),
				zap.String("job_id", task.JobID),
				zap.Any("panic", r),
			)
		}
	}()
	p.Exec.Execute(taskCtx, task)
}

// runRetryScan turns due ScheduledRetry rows back into tasks. Jobs that
// reached a terminal state while waiting are dropped; the tracker's CAS
// would ignore them anyway, this just saves the work.
func (p *Pool) runRetryScan(ctx context.Context) {
	interval := p.ScanInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scanOnce(ctx)
		}
	}
}

func (p *Pool) scanOnce(ctx context.Context) {
	if p.Store == nil {
		return
	}
	batch := p.ClaimBatch
	if batch <= 0 {
		batch = 50
	}
	due, err := p.Store.ClaimDueScheduledRetries(ctx, time.Now().UTC(), batch)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("retry scan failed", zap.Error(err))
		}
		return
	}
	for _, retry := range due {
		job, err := p.Store.GetJobByID(ctx, retry.JobID)
		if err != nil || job == nil {
			continue
		}
		if models.JobTerminal(job.Status) {
			continue
		}
		task := Task{JobID: job.ID, Queue: job.Queue, Attempt: retry.Attempt}
		if err := p.Enqueue(task); err != nil && p.Logger != nil {
			p.Logger.Warn("re-enqueue of retry failed",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
	}
}
