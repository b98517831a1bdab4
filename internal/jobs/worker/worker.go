package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/jobs/runtime"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

const (
	retryDelay        = 30 * time.Second
	staleRunning      = 30 * time.Minute
	heartbeatInterval = time.Minute
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	metrics  *observability.Metrics
	cfg      Config
	wg       sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, metrics *observability.Metrics, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		metrics:  metrics,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i+1)
	}
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job ran.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, services.MaxJobAttempts, retryDelay, staleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.Execute(ctx, job)
	return true, nil
}

// Execute runs a claimed job through its handler and records the outcome.
func (w *Worker) Execute(ctx context.Context, job *types.JobRun) *runtime.Context {
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)
	started := time.Now()
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		w.metrics.JobFinished(job.JobType, job.Status, time.Since(started))
		return jc
	}

	hbCtx, stopHeartbeat := context.WithCancel(jc.Ctx)
	go w.heartbeat(hbCtx, job)
	func() {
		defer stopHeartbeat()
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				jc.Fail("panic", &panicError{Val: r})
			}
		}()
		runErr := h.Run(jc)
		switch {
		case runErr != nil && !jc.Finished():
			jc.Fail("run", runErr)
		case runErr == nil && !jc.Finished():
			jc.Succeed("done", nil)
		}
	}()
	w.metrics.JobFinished(job.JobType, job.Status, time.Since(started))
	if job.Status == jobs.StatusFailed {
		w.log.Warn("Job failed", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", job.Error)
	}
	return jc
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
				w.log.Debug("heartbeat failed", "job_id", job.ID, "error", err)
			}
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
