package services

import (
	"testing"
	"time"

	redisclient "github.com/yungbote/noc-backend/internal/clients/redis"
	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

func (f fixture) metricsService(locker redisclient.Locker) MetricsService {
	return NewMetricsService(f.db, f.log, NOCConfig{RollupConcurrency: 1}, MetricsDeps{
		Tenants:    repos.NewTenantRepo(f.db, f.log),
		Alerts:     repos.NewAlertRepo(f.db, f.log),
		Incidents:  repos.NewIncidentRepo(f.db, f.log),
		Executions: repos.NewPlaybookExecutionRepo(f.db, f.log),
		Snapshots:  repos.NewMetricSnapshotRepo(f.db, f.log),
		Rollups:    repos.NewMetricRollupRepo(f.db, f.log),
		Heatmap:    repos.NewHeatmapRepo(f.db, f.log),
		JobRuns:    repos.NewJobRunRepo(f.db, f.log),
		JobEvents:  repos.NewJobRunEventRepo(f.db, f.log),
		Locker:     locker,
	})
}

func TestCaptureSnapshotCountsAndSuppressedDelta(t *testing.T) {
	f := newFixture(t)
	svc := f.metricsService(nil)
	tenant := f.tenant(t)

	noisy := testutil.SeedAlert(t, f.ctx, f.db, tenant, func(a *types.AlertEvent) { a.SuppressedCount = 3 })
	testutil.SeedAlert(t, f.ctx, f.db, tenant, func(a *types.AlertEvent) { a.Severity = noc.SeverityCritical })
	testutil.SeedAlert(t, f.ctx, f.db, tenant, func(a *types.AlertEvent) { a.Status = noc.AlertStatusResolved })

	now := time.Now().UTC().Add(time.Second)
	first, err := svc.CaptureSnapshot(f.dbc, tenant, now)
	if err != nil {
		t.Fatalf("CaptureSnapshot: %v", err)
	}
	if first.AlertsOpen != 2 || first.AlertsCriticalOpen != 1 {
		t.Fatalf("open counts: want=2/1 got=%v/%v", first.AlertsOpen, first.AlertsCriticalOpen)
	}
	if first.AlertsNew != 3 {
		t.Fatalf("new alerts: want=3 got=%v", first.AlertsNew)
	}
	if first.AlertsSuppressed != 0 || first.SuppressedTotal != 3 {
		t.Fatalf("first suppressed: want delta=0 total=3 got=%v/%d", first.AlertsSuppressed, first.SuppressedTotal)
	}

	if err := repos.NewAlertRepo(f.db, f.log).UpdateFields(f.dbc, tenant, noisy.ID, map[string]interface{}{"suppressed_count": 5}); err != nil {
		t.Fatalf("bump suppressed_count: %v", err)
	}
	second, err := svc.CaptureSnapshot(f.dbc, tenant, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("CaptureSnapshot again: %v", err)
	}
	if second.AlertsSuppressed != 2 {
		t.Fatalf("suppressed delta: want=2 got=%v", second.AlertsSuppressed)
	}
	if second.AlertsNew != 0 {
		t.Fatalf("new alerts since last capture: want=0 got=%v", second.AlertsNew)
	}
}

func TestRollupAdvancesWatermark(t *testing.T) {
	f := newFixture(t)
	locker := redisclient.NewLocalLocker()
	svc := f.metricsService(locker)
	tenant := f.tenant(t)
	snaps := repos.NewMetricSnapshotRepo(f.db, f.log)

	base := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Hour)
	for _, off := range []time.Duration{0, time.Minute, 6 * time.Minute} {
		s := &types.MetricSnapshot{TenantID: tenant, CapturedAt: base.Add(off), AlertsOpen: 1, CreatedAt: base}
		if err := snaps.Create(f.dbc, s); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
	now := base.Add(12 * time.Minute)

	first, err := svc.Rollup(f.dbc, noc.Resolution5m, now)
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	perBucket := len(noc.MetricNames)
	if first.Skipped || first.Tenants != 1 || first.Rows != 2*perBucket {
		t.Fatalf("first rollup: %+v want rows=%d", first, 2*perBucket)
	}

	second, err := svc.Rollup(f.dbc, noc.Resolution5m, now)
	if err != nil {
		t.Fatalf("Rollup again: %v", err)
	}
	if second.Rows != perBucket {
		t.Fatalf("re-run redoes last bucket only: want=%d got=%d", perBucket, second.Rows)
	}

	release, err := locker.Acquire(f.ctx, "rollup:"+string(noc.Resolution5m), time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	held, err := svc.Rollup(f.dbc, noc.Resolution5m, now)
	release()
	if err != nil || !held.Skipped {
		t.Fatalf("held lock: want skipped got=%+v err=%v", held, err)
	}

	if _, err := svc.Rollup(f.dbc, noc.ResolutionRaw, now); err == nil {
		t.Fatalf("raw target: want error got=nil")
	}
	if _, err := svc.Rollup(f.dbc, noc.Resolution5m, base.Add(70*time.Minute)); err != nil {
		t.Fatalf("Rollup 5m past the hour: %v", err)
	}
	coarse, err := svc.Rollup(f.dbc, noc.Resolution1h, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Rollup 1h: %v", err)
	}
	if coarse.Rows != perBucket {
		t.Fatalf("1h rollup from 5m tier: want=%d got=%d", perBucket, coarse.Rows)
	}

	stats, err := svc.StorageStats(f.dbc, tenant)
	if err != nil {
		t.Fatalf("StorageStats: %v", err)
	}
	if len(stats) != len(noc.Resolutions) {
		t.Fatalf("tiers: want=%d got=%d", len(noc.Resolutions), len(stats))
	}
}

func TestCleanupKeepsUnrolledRaw(t *testing.T) {
	f := newFixture(t)
	svc := f.metricsService(nil)
	tenant := f.tenant(t)
	snaps := repos.NewMetricSnapshotRepo(f.db, f.log)

	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	if err := snaps.Create(f.dbc, &types.MetricSnapshot{TenantID: tenant, CapturedAt: old, CreatedAt: old}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	rep, err := svc.Cleanup(f.dbc, time.Now().UTC())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if rep.Deleted[noc.ResolutionRaw] != 0 {
		t.Fatalf("raw without 5m watermark: want=0 deleted got=%d", rep.Deleted[noc.ResolutionRaw])
	}
	st, err := snaps.Stats(f.dbc, tenant)
	if err != nil || st.Rows != 1 {
		t.Fatalf("raw rows kept: rows=%d err=%v", st.Rows, err)
	}
}
