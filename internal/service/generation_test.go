package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"slipforge/internal/aggregator"
	"slipforge/internal/config"
	"slipforge/internal/dispatch"
	"slipforge/internal/engine"
	"slipforge/internal/features"
	"slipforge/internal/models"
	"slipforge/internal/persister"
	"slipforge/internal/tracker"
	"slipforge/internal/worker"
)

type stubEnqueuer struct {
	tasks      []worker.Task
	enqueueErr error
}

func (s *stubEnqueuer) Enqueue(task worker.Task) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.tasks = append(s.tasks, task)
	return nil
}

type stubEngineCaller struct {
	calls int
	resp  *engine.Response
	err   error
}

func (s *stubEngineCaller) Do(_ context.Context, _ engine.Request) (*engine.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newService(repo *stubRepo, eng *stubEngineCaller, pool Enqueuer) *GenerationService {
	cfg := config.Config{Queues: config.DefaultQueues()}
	cfg.Generation.DefaultStake = 10
	cfg.Generation.MaxSlips = 100
	cfg.Generation.RiskProfile = "balanced"

	tr := &tracker.Tracker{Store: repo}
	dispatcher := &dispatch.Controller{Engine: eng}
	return &GenerationService{
		Repo:       repo,
		Aggregator: &aggregator.Aggregator{Store: repo},
		Features:   &features.Computer{Store: repo},
		Dispatcher: dispatcher,
		Persister:  &persister.Persister{Store: repo, Tracker: tr, MaxSlips: cfg.Generation.MaxSlips},
		Tracker:    tr,
		Pool:       pool,
		Config:     cfg,
	}
}

func seedMatches(repo *stubRepo, ids ...uint64) {
	for _, id := range ids {
		repo.matches[id] = models.Match{ID: id, HomeTeam: "home", AwayTeam: "away"}
	}
}

func TestSubmitCreatesSlipAndPendingJob(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1, 2)
	pool := &stubEnqueuer{}
	svc := newService(repo, &stubEngineCaller{}, pool)

	res, err := svc.Submit(context.Background(), []uint64{1, 2}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != models.JobPending {
		t.Fatalf("status = %q, want pending", res.Status)
	}

	slip, _ := repo.GetMasterSlipByID(context.Background(), res.MasterSlipID)
	if slip == nil {
		t.Fatalf("master slip was not created")
	}
	// No stake supplied: the configured default applies.
	if !slip.StakePerLeg.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("stake = %s, want default 10", slip.StakePerLeg.String())
	}

	if len(pool.tasks) != 1 || pool.tasks[0].Queue != slipGenerationQueue {
		t.Fatalf("enqueued tasks = %+v", pool.tasks)
	}
}

func TestSubmitRejectsUnknownMatches(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1)
	svc := newService(repo, &stubEngineCaller{}, &stubEnqueuer{})

	_, err := svc.Submit(context.Background(), []uint64{1, 99}, SubmitOptions{})
	var verr *aggregator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestRegenerateRejectsWhileJobActive(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1)
	svc := newService(repo, &stubEngineCaller{}, &stubEnqueuer{})

	res, err := svc.Submit(context.Background(), []uint64{1}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The first job is still pending, so a second one must be refused.
	_, err = svc.Regenerate(context.Background(), res.MasterSlipID)
	var verr *aggregator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError while a job is active", err)
	}
}

func TestExecuteCompletesWithEngineResult(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1, 2)
	eng := &stubEngineCaller{resp: &engine.Response{
		Status: "success",
		GeneratedSlips: []engine.SlipPayload{
			{SlipID: "eng-1", Stake: 10, TotalOdds: 4.5, RiskLevel: models.RiskLow, ConfidenceScore: 0.8},
		},
	}}
	pool := &stubEnqueuer{}
	svc := newService(repo, eng, pool)

	res, err := svc.Submit(context.Background(), []uint64{1, 2}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	svc.Execute(context.Background(), pool.tasks[0])

	job, _ := repo.GetJobByID(context.Background(), res.JobID)
	if job.Status != models.JobCompleted {
		t.Fatalf("job status = %q, want completed", job.Status)
	}
	if job.Progress != tracker.ProgressPersisted {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}

	slips, _ := repo.ListGeneratedSlipsByMasterSlipID(context.Background(), res.MasterSlipID)
	if len(slips) != 1 || slips[0].Source != models.SlipSourceEngine {
		t.Fatalf("generated slips = %+v", slips)
	}
	slip, _ := repo.GetMasterSlipByID(context.Background(), res.MasterSlipID)
	if slip.Status != models.SlipStatusGenerated {
		t.Fatalf("master slip status = %q, want generated", slip.Status)
	}
}

func TestExecuteSchedulesRetryOnEngineFailure(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1)
	eng := &stubEngineCaller{err: errors.New("engine down")}
	pool := &stubEnqueuer{}
	svc := newService(repo, eng, pool)

	res, err := svc.Submit(context.Background(), []uint64{1}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// slip_generation allows 3 attempts; attempt 0 must schedule a retry.
	svc.Execute(context.Background(), pool.tasks[0])

	job, _ := repo.GetJobByID(context.Background(), res.JobID)
	if job.Status != models.JobRunning {
		t.Fatalf("job status = %q, want running through the backoff window", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", job.RetryCount)
	}
	if len(repo.retries) != 1 || repo.retries[0].Attempt != 1 {
		t.Fatalf("scheduled retries = %+v, want one with attempt 1", repo.retries)
	}
}

func TestExecuteFallsBackAfterExhaustion(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1, 2)
	eng := &stubEngineCaller{err: errors.New("engine down")}
	pool := &stubEnqueuer{}
	svc := newService(repo, eng, pool)

	res, err := svc.Submit(context.Background(), []uint64{1, 2}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Final attempt under the 3-attempt budget.
	task := pool.tasks[0]
	task.Attempt = 2
	svc.Execute(context.Background(), task)

	job, _ := repo.GetJobByID(context.Background(), res.JobID)
	if job.Status != models.JobFallback {
		t.Fatalf("job status = %q, want fallback", job.Status)
	}

	slips, _ := repo.ListGeneratedSlipsByMasterSlipID(context.Background(), res.MasterSlipID)
	if len(slips) != 1 || slips[0].Source != models.SlipSourceFallback {
		t.Fatalf("generated slips = %+v, want the single fallback slip", slips)
	}
	// 2 legs at flat 2.0 odds.
	if slips[0].TotalOdds.String() != "4" {
		t.Fatalf("fallback total odds = %s, want 4", slips[0].TotalOdds.String())
	}
	slip, _ := repo.GetMasterSlipByID(context.Background(), res.MasterSlipID)
	if slip.Status != models.SlipStatusFallback {
		t.Fatalf("master slip status = %q, want fallback", slip.Status)
	}
}

func TestExecuteRecordsRetryAfterTaskDeadline(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1)
	eng := &stubEngineCaller{err: context.DeadlineExceeded}
	pool := &stubEnqueuer{}
	svc := newService(repo, eng, pool)

	res, err := svc.Submit(context.Background(), []uint64{1}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The pool hands Execute a context that is already past its wall-clock
	// limit; the stub repo rejects writes on a dead context like a real
	// driver would. The retry record and job state must still land.
	taskCtx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Execute(taskCtx, pool.tasks[0])

	job, _ := repo.GetJobByID(context.Background(), res.JobID)
	if job.Status != models.JobRunning {
		t.Fatalf("job status = %q, want running through the backoff window", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", job.RetryCount)
	}
	if len(repo.retries) != 1 {
		t.Fatalf("scheduled retries = %+v, want one despite the expired task context", repo.retries)
	}
}

func TestExecuteFallsBackAfterTaskDeadlineOnFinalAttempt(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1)
	eng := &stubEngineCaller{err: context.DeadlineExceeded}
	pool := &stubEnqueuer{}
	svc := newService(repo, eng, pool)

	res, err := svc.Submit(context.Background(), []uint64{1}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	cancel()
	task := pool.tasks[0]
	task.Attempt = 2
	svc.Execute(taskCtx, task)

	job, _ := repo.GetJobByID(context.Background(), res.JobID)
	if job.Status != models.JobFallback {
		t.Fatalf("job status = %q, want fallback despite the expired task context", job.Status)
	}
	slips, _ := repo.ListGeneratedSlipsByMasterSlipID(context.Background(), res.MasterSlipID)
	if len(slips) != 1 || slips[0].Source != models.SlipSourceFallback {
		t.Fatalf("generated slips = %+v, want the single fallback slip", slips)
	}
}

func TestExecuteIgnoresTerminalJobs(t *testing.T) {
	repo := newStubRepo()
	seedMatches(repo, 1)
	eng := &stubEngineCaller{resp: &engine.Response{Status: "success"}}
	pool := &stubEnqueuer{}
	svc := newService(repo, eng, pool)

	res, err := svc.Submit(context.Background(), []uint64{1}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	repo.jobs[res.JobID].Status = models.JobCompleted

	svc.Execute(context.Background(), pool.tasks[0])

	if eng.calls != 0 {
		t.Fatalf("terminal job reached the engine")
	}
}
