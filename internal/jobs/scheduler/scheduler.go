// Package scheduler is the periodic beat that enqueues maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/yungbote/noc-backend/internal/clients/redis"
	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

const tickInterval = 5 * time.Second

// Entry is one row of the beat table.
type Entry struct {
	Name      string
	JobType   string
	Interval  time.Duration
	PerTenant bool
	Payload   map[string]any
}

// DefaultEntries is the beat table; snapshot capture follows the configured
// snapshot interval.
func DefaultEntries(snapshotInterval time.Duration) []Entry {
	if snapshotInterval <= 0 {
		snapshotInterval = time.Minute
	}
	return []Entry{
		{Name: "snapshot", JobType: jobs.TypeMetricSnapshotCapture, Interval: snapshotInterval, PerTenant: true},
		{Name: "rollup_5m", JobType: jobs.TypeMetricRollup, Interval: 5 * time.Minute, Payload: map[string]any{"resolution": string(noc.Resolution5m)}},
		{Name: "rollup_1h", JobType: jobs.TypeMetricRollup, Interval: time.Hour, Payload: map[string]any{"resolution": string(noc.Resolution1h)}},
		{Name: "rollup_1d", JobType: jobs.TypeMetricRollup, Interval: 24 * time.Hour, Payload: map[string]any{"resolution": string(noc.Resolution1d)}},
		{Name: "cleanup", JobType: jobs.TypeMetricCleanup, Interval: 6 * time.Hour},
		{Name: "recorrelate", JobType: jobs.TypeAlertRecorrelate, Interval: 5 * time.Minute, PerTenant: true},
		{Name: "rescore", JobType: jobs.TypeAlertRescore, Interval: 5 * time.Minute, PerTenant: true},
		{Name: "recommendations", JobType: jobs.TypeRecommendationRefresh, Interval: time.Hour, PerTenant: true},
		{Name: "close_stale", JobType: jobs.TypeCorrelationCloseStale, Interval: 15 * time.Minute, PerTenant: true},
	}
}

// SystemEntityID gives each system entry a stable entity so entries sharing
// a job type do not block each other in EnqueueIfIdle.
func SystemEntityID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("noc.beat."+name))
}

type Scheduler struct {
	log     *logger.Logger
	jobs    services.JobService
	tenants repos.TenantRepo
	locker  redisclient.Locker
	entries []Entry

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func New(baseLog *logger.Logger, jobSvc services.JobService, tenants repos.TenantRepo, locker redisclient.Locker, entries []Entry) *Scheduler {
	if locker == nil {
		locker = redisclient.NewLocalLocker()
	}
	return &Scheduler{
		log:     baseLog.With("component", "Scheduler"),
		jobs:    jobSvc,
		tenants: tenants,
		locker:  locker,
		entries: entries,
		lastRun: map[string]time.Time{},
	}
}

// Due returns entries whose interval has elapsed since their last run.
func (s *Scheduler) Due(now time.Time) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		last, ok := s.lastRun[e.Name]
		if !ok || now.Sub(last) >= e.Interval {
			out = append(out, e)
		}
	}
	return out
}

func (s *Scheduler) markRun(name string, at time.Time) {
	s.mu.Lock()
	s.lastRun[name] = at
	s.mu.Unlock()
}

// Tick enqueues every due entry and returns the number of jobs created.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	var errs []error
	created := 0
	for _, e := range s.Due(now) {
		s.markRun(e.Name, now)
		// The beat lock is left to expire so peers skip this interval.
		if _, err := s.locker.Acquire(ctx, "beat:"+e.Name, e.Interval-time.Second); err != nil {
			if !errors.Is(err, redisclient.ErrLockHeld) {
				errs = append(errs, err)
			}
			continue
		}
		n, err := s.enqueue(ctx, e)
		created += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return created, errors.Join(errs...)
}

func (s *Scheduler) enqueue(ctx context.Context, e Entry) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if !e.PerTenant {
		id := SystemEntityID(e.Name)
		_, ok, err := s.jobs.EnqueueIfIdle(dbc, services.EnqueueRequest{
			JobType:    e.JobType,
			EntityType: jobs.EntitySystem,
			EntityID:   &id,
			Payload:    copyPayload(e.Payload),
		})
		if ok {
			return 1, err
		}
		return 0, err
	}

	ids, err := s.tenants.ListIDs(dbc)
	if err != nil {
		return 0, err
	}
	created := 0
	var errs []error
	for _, tid := range ids {
		tenantID := tid
		_, ok, err := s.jobs.EnqueueIfIdle(dbc, services.EnqueueRequest{
			TenantID:   &tenantID,
			JobType:    e.JobType,
			EntityType: jobs.EntityTenant,
			EntityID:   &tenantID,
			Payload:    copyPayload(e.Payload),
		})
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			created++
		}
	}
	return created, errors.Join(errs...)
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("Scheduler started", "entries", len(s.entries))
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		if n, err := s.Tick(ctx, time.Now().UTC()); err != nil {
			s.log.Warn("scheduler tick failed", "enqueued", n, "error", err)
		} else if n > 0 {
			s.log.Debug("scheduler enqueued jobs", "count", n)
		}
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-t.C:
		}
	}
}
