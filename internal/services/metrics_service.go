package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/clients/influx"
	redisclient "github.com/yungbote/noc-backend/internal/clients/redis"
	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/timeseries"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const (
	rollupLockTTL     = 10 * time.Minute
	cleanupLockTTL    = 30 * time.Minute
	heatmapRetention  = 90 * 24 * time.Hour
	jobRunRetention   = 30 * 24 * time.Hour
	incidentStatsSpan = 24 * time.Hour
)

type RollupReport struct {
	Resolution noc.Resolution `json:"resolution"`
	Skipped    bool           `json:"skipped"`
	Tenants    int            `json:"tenants"`
	Rows       int            `json:"rows"`
}

type CleanupReport struct {
	Skipped bool                     `json:"skipped"`
	Deleted map[noc.Resolution]int64 `json:"deleted"`
	Clicks  int64                    `json:"heatmap_clicks"`
	JobRuns int64                    `json:"job_runs"`
	Events  int64                    `json:"job_events"`
}

type MetricsService interface {
	CaptureSnapshot(dbc dbctx.Context, tenantID uuid.UUID, now time.Time) (*types.MetricSnapshot, error)
	CaptureAll(dbc dbctx.Context, now time.Time) (int, error)
	// Rollup aggregates every tenant's source tier into res. Runs are
	// serialized across processes; a held lock yields a skipped report.
	Rollup(dbc dbctx.Context, res noc.Resolution, now time.Time) (*RollupReport, error)
	Cleanup(dbc dbctx.Context, now time.Time) (*CleanupReport, error)
	StorageStats(dbc dbctx.Context, tenantID uuid.UUID) ([]timeseries.TierSummary, error)
}

type MetricsDeps struct {
	Tenants    repos.TenantRepo
	Alerts     repos.AlertRepo
	Incidents  repos.IncidentRepo
	Executions repos.PlaybookExecutionRepo
	Snapshots  repos.MetricSnapshotRepo
	Rollups    repos.MetricRollupRepo
	Heatmap    repos.HeatmapRepo
	JobRuns    repos.JobRunRepo
	JobEvents  repos.JobRunEventRepo
	Locker     redisclient.Locker
	// Export is optional; rollups at 1h and coarser are mirrored to it.
	Export  influx.RollupWriter
	Notify  NOCNotifier
	Metrics *observability.Metrics
}

type metricsService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg NOCConfig
	MetricsDeps
}

func NewMetricsService(db *gorm.DB, baseLog *logger.Logger, cfg NOCConfig, deps MetricsDeps) MetricsService {
	if deps.Locker == nil {
		deps.Locker = redisclient.NewLocalLocker()
	}
	return &metricsService{
		db:          db,
		log:         baseLog.With("service", "MetricsService"),
		cfg:         cfg.WithDefaults(),
		MetricsDeps: deps,
	}
}

func (s *metricsService) CaptureSnapshot(dbc dbctx.Context, tenantID uuid.UUID, now time.Time) (*types.MetricSnapshot, error) {
	now = now.UTC()
	prev, err := s.Snapshots.LatestBefore(dbc, tenantID, now)
	if err != nil {
		return nil, err
	}
	from := now.Add(-s.cfg.SnapshotInterval)
	if prev != nil && prev.CapturedAt.After(from) {
		from = prev.CapturedAt
	}

	counts, err := s.Alerts.Counts(dbc, tenantID)
	if err != nil {
		return nil, fmt.Errorf("alert counts: %w", err)
	}
	newAlerts, err := s.Alerts.CountFirstSeenBetween(dbc, tenantID, from, now)
	if err != nil {
		return nil, err
	}
	openIncidents, err := s.Incidents.CountOpen(dbc, tenantID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.Incidents.CountResolvedBetween(dbc, tenantID, from, now)
	if err != nil {
		return nil, err
	}
	recent, err := s.Incidents.ListOpenedSince(dbc, tenantID, now.Add(-incidentStatsSpan))
	if err != nil {
		return nil, err
	}
	stats := summarizeIncidents(now.Add(-incidentStatsSpan), recent)
	runs, err := s.Executions.CountRequestedBetween(dbc, tenantID, from, now)
	if err != nil {
		return nil, err
	}

	var suppressed float64
	if prev != nil && counts.SuppressedTotal > prev.SuppressedTotal {
		suppressed = float64(counts.SuppressedTotal - prev.SuppressedTotal)
	}
	snap := &types.MetricSnapshot{
		TenantID:           tenantID,
		CapturedAt:         now,
		AlertsOpen:         float64(counts.Open),
		AlertsCriticalOpen: float64(counts.CriticalOpen),
		AlertsNew:          float64(newAlerts),
		AlertsSuppressed:   suppressed,
		IncidentsOpen:      float64(openIncidents),
		IncidentsResolved:  float64(resolved),
		MTTASeconds:        stats.MTTASeconds,
		MTTRSeconds:        stats.MTTRSeconds,
		PlaybookRuns:       float64(runs),
		PriorityScoreAvg:   counts.PriorityScoreAvg,
		SuppressedTotal:    counts.SuppressedTotal,
	}
	if err := s.Snapshots.Create(dbc, snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	if s.Notify != nil {
		s.Notify.MetricsSnapshot(dbc.Ctx, tenantID, snap)
	}
	return snap, nil
}

func (s *metricsService) CaptureAll(dbc dbctx.Context, now time.Time) (int, error) {
	ids, err := s.Tenants.ListIDs(dbc)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, id := range ids {
		if _, err := s.CaptureSnapshot(dbc, id, now); err != nil {
			s.log.Warn("Snapshot capture failed", "tenant_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (s *metricsService) Rollup(dbc dbctx.Context, res noc.Resolution, now time.Time) (*RollupReport, error) {
	if res.Step() == 0 {
		return nil, fmt.Errorf("cannot roll up into %q", res)
	}
	report := &RollupReport{Resolution: res}
	ctx := ctxutil.Default(dbc.Ctx)
	release, err := s.Locker.Acquire(ctx, "rollup:"+string(res), rollupLockTTL)
	if errors.Is(err, redisclient.ErrLockHeld) {
		s.log.Info("Rollup already running elsewhere; skipping", "resolution", res)
		report.Skipped = true
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire rollup lock: %w", err)
	}
	defer release()

	started := time.Now()
	tenants, err := s.Tenants.List(dbc)
	if err != nil {
		return nil, err
	}
	limit := s.cfg.RollupConcurrency
	if dbc.Tx != nil {
		limit = 1
	}
	rows := make([]int, len(tenants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, t := range tenants {
		g.Go(func() error {
			n, err := s.rollupTenant(dbctx.Context{Ctx: gctx, Tx: dbc.Tx}, t, res, now)
			if err != nil {
				return fmt.Errorf("tenant %s: %w", t.Slug, err)
			}
			rows[i] = n
			return nil
		})
	}
	err = g.Wait()
	for _, n := range rows {
		report.Rows += n
	}
	report.Tenants = len(tenants)
	s.Metrics.RollupObserved(string(res), report.Rows, time.Since(started))
	if err != nil {
		return report, err
	}
	s.log.Info("Rollup finished", "resolution", res, "tenants", report.Tenants, "rows", report.Rows)
	return report, nil
}

func (s *metricsService) rollupTenant(dbc dbctx.Context, tenant *types.Tenant, res noc.Resolution, now time.Time) (int, error) {
	src := res.Source()
	var written []*types.MetricRollup
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		wm, err := s.Rollups.GetWatermark(inner, tenant.ID, res)
		if err != nil {
			return err
		}
		in := timeseries.PlanInput{Resolution: res, Now: now, Grace: s.cfg.RollupGrace}
		if wm != nil {
			in.Watermark = &wm.RolledUntil
		}
		if src == noc.ResolutionRaw {
			st, err := s.Snapshots.Stats(inner, tenant.ID)
			if err != nil {
				return err
			}
			if st.Oldest != nil {
				in.Earliest = *st.Oldest
			}
		} else {
			srcWM, err := s.Rollups.GetWatermark(inner, tenant.ID, src)
			if err != nil {
				return err
			}
			if srcWM != nil {
				in.SourceRolledUntil = &srcWM.RolledUntil
			}
			st, err := s.Rollups.Stats(inner, tenant.ID, src)
			if err != nil {
				return err
			}
			if st.Oldest != nil {
				in.Earliest = *st.Oldest
			}
		}
		win, ok := timeseries.Plan(in)
		if !ok {
			return nil
		}

		if src == noc.ResolutionRaw {
			snaps, err := s.Snapshots.ListRange(inner, tenant.ID, win.From, win.To)
			if err != nil {
				return err
			}
			written = timeseries.RollupSnapshots(tenant.ID, res, snaps)
		} else {
			finer, err := s.Rollups.ListRange(inner, tenant.ID, src, win.From, win.To, nil)
			if err != nil {
				return err
			}
			written = timeseries.RollupRollups(tenant.ID, res, finer)
		}
		if err := s.Rollups.Upsert(inner, written); err != nil {
			return fmt.Errorf("upsert rollups: %w", err)
		}
		return s.Rollups.SetWatermark(inner, tenant.ID, res, win.To)
	})
	if err != nil {
		return 0, err
	}
	if s.Export != nil && res != noc.Resolution5m && len(written) > 0 {
		if err := s.Export.WriteRollups(ctxutil.Default(dbc.Ctx), tenant.Slug, written); err != nil {
			s.log.Warn("Rollup export failed", "tenant", tenant.Slug, "resolution", res, "error", err)
		}
	}
	return len(written), nil
}

func (s *metricsService) Cleanup(dbc dbctx.Context, now time.Time) (*CleanupReport, error) {
	report := &CleanupReport{Deleted: map[noc.Resolution]int64{}}
	ctx := ctxutil.Default(dbc.Ctx)
	release, err := s.Locker.Acquire(ctx, "cleanup", cleanupLockTTL)
	if errors.Is(err, redisclient.ErrLockHeld) {
		report.Skipped = true
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire cleanup lock: %w", err)
	}
	defer release()

	ids, err := s.Tenants.ListIDs(dbc)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		for _, res := range noc.Resolutions {
			n, err := s.cleanupTier(dbc, id, res, now)
			if err != nil {
				return report, fmt.Errorf("cleanup %s for tenant %s: %w", res, id, err)
			}
			report.Deleted[res] += n
		}
	}
	for res, n := range report.Deleted {
		s.Metrics.CleanupDeleted(string(res), n)
	}

	if s.Heatmap != nil {
		if report.Clicks, err = s.Heatmap.DeleteBefore(dbc, now.Add(-heatmapRetention)); err != nil {
			return report, err
		}
	}
	if s.JobRuns != nil {
		if report.JobRuns, err = s.JobRuns.DeleteFinishedBefore(dbc, now.Add(-jobRunRetention)); err != nil {
			return report, err
		}
	}
	if s.JobEvents != nil {
		if report.Events, err = s.JobEvents.DeleteBefore(dbc, now.Add(-jobRunRetention)); err != nil {
			return report, err
		}
	}
	s.log.Info("Cleanup finished", "deleted", report.Deleted, "clicks", report.Clicks, "job_runs", report.JobRuns)
	return report, nil
}

func (s *metricsService) cleanupTier(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, now time.Time) (int64, error) {
	var nextRolled *time.Time
	if res != noc.Resolution1d {
		wm, err := s.Rollups.GetWatermark(dbc, tenantID, res.Coarser())
		if err != nil {
			return 0, err
		}
		if wm != nil {
			nextRolled = &wm.RolledUntil
		}
	}
	cutoff, ok := timeseries.CleanupCutoff(res, now, s.cfg.Retention[res], nextRolled)
	if !ok {
		return 0, nil
	}
	if res == noc.ResolutionRaw {
		return s.Snapshots.DeleteBefore(dbc, tenantID, cutoff)
	}
	return s.Rollups.DeleteBefore(dbc, tenantID, res, cutoff)
}

func (s *metricsService) StorageStats(dbc dbctx.Context, tenantID uuid.UUID) ([]timeseries.TierSummary, error) {
	out := make([]timeseries.TierSummary, 0, len(noc.Resolutions))
	for _, res := range noc.Resolutions {
		var st repos.TierStats
		var err error
		if res == noc.ResolutionRaw {
			st, err = s.Snapshots.Stats(dbc, tenantID)
		} else {
			st, err = s.Rollups.Stats(dbc, tenantID, res)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, timeseries.Summarize(res, st.Rows, st.Samples, st.Oldest, st.Newest))
	}
	return out, nil
}
