package noc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
)

func TestAlertRepoActiveDedupKeyIsUnique(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewAlertRepo(db, testutil.Logger(t))

	tenant := testutil.SeedTenant(t, ctx, tx, "acme")
	first := testutil.SeedAlert(t, ctx, tx, tenant.ID, func(a *types.AlertEvent) { a.DedupKey = "k1" })

	err := tx.Transaction(func(inner *gorm.DB) error {
		now := time.Now().UTC()
		return repo.Create(dbctx.Context{Ctx: ctx, Tx: inner}, &types.AlertEvent{
			TenantID: tenant.ID, Source: "test", AlertType: "device_offline", Severity: noc.SeverityLow,
			DedupKey: "k1", Status: noc.AlertStatusOpen, FirstSeenAt: now, LastSeenAt: now,
		})
	})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("second active insert: want=%v got=%v", gorm.ErrDuplicatedKey, err)
	}

	ok, err := repo.UpdateFieldsIfStatus(dbc, tenant.ID, first.ID, noc.ActiveAlertStatuses, map[string]interface{}{
		"status":      noc.AlertStatusResolved,
		"resolved_at": time.Now().UTC(),
	})
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	second := testutil.SeedAlert(t, ctx, tx, tenant.ID, func(a *types.AlertEvent) { a.DedupKey = "k1" })

	active, err := repo.GetActiveByDedupKey(dbc, tenant.ID, "k1")
	if err != nil {
		t.Fatalf("GetActiveByDedupKey: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("active alert: want=%v got=%v", second.ID, active)
	}
	resolved, err := repo.GetResolvedByDedupKeySince(dbc, tenant.ID, "k1", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetResolvedByDedupKeySince: %v", err)
	}
	if resolved == nil || resolved.ID != first.ID {
		t.Fatalf("resolved alert: want=%v got=%v", first.ID, resolved)
	}
}

func TestAlertRepoListIsTenantScopedAndOrdered(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewAlertRepo(db, testutil.Logger(t))

	a := testutil.SeedTenant(t, ctx, tx, "a")
	b := testutil.SeedTenant(t, ctx, tx, "b")
	low := testutil.SeedAlert(t, ctx, tx, a.ID, func(x *types.AlertEvent) { x.PriorityScore = 10 })
	high := testutil.SeedAlert(t, ctx, tx, a.ID, func(x *types.AlertEvent) { x.PriorityScore = 90 })
	other := testutil.SeedAlert(t, ctx, tx, b.ID, nil)

	got, total, err := repo.List(dbc, a.ID, AlertFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("total: want=2 got=%d (%d rows)", total, len(got))
	}
	if got[0].ID != high.ID || got[1].ID != low.ID {
		t.Fatalf("order: want=[%v %v] got=[%v %v]", high.ID, low.ID, got[0].ID, got[1].ID)
	}

	cross, err := repo.GetByID(dbc, a.ID, other.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if cross != nil {
		t.Fatalf("cross-tenant lookup: want=nil got=%v", cross.ID)
	}

	counts, err := repo.Counts(dbc, a.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Open != 2 {
		t.Fatalf("open: want=2 got=%d", counts.Open)
	}
	if counts.PriorityScoreAvg != 50 {
		t.Fatalf("avg score: want=50 got=%v", counts.PriorityScoreAvg)
	}
}

func TestIncidentRepoNumbersPerTenant(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewIncidentRepo(db, testutil.Logger(t))

	a := testutil.SeedTenant(t, ctx, tx, "a")
	b := testutil.SeedTenant(t, ctx, tx, "b")

	mk := func(tenantID uuid.UUID) *types.Incident {
		inc := &types.Incident{
			TenantID: tenantID,
			Title:    "outage",
			Severity: noc.SeverityHigh,
			Status:   noc.IncidentStatusOpen,
			OpenedAt: time.Now().UTC(),
		}
		if err := repo.Create(dbc, inc); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return inc
	}
	a1, a2, b1 := mk(a.ID), mk(a.ID), mk(b.ID)
	if a1.Number != 1 || a2.Number != 2 || b1.Number != 1 {
		t.Fatalf("numbers: want=[1 2 1] got=[%d %d %d]", a1.Number, a2.Number, b1.Number)
	}

	ok, err := repo.UpdateFieldsIfStatus(dbc, a.ID, a1.ID, noc.IncidentStatusAcknowledged, map[string]interface{}{"status": noc.IncidentStatusResolved})
	if err != nil {
		t.Fatalf("UpdateFieldsIfStatus: %v", err)
	}
	if ok {
		t.Fatalf("stale status compare: want=false got=true")
	}

	if err := repo.AppendTimeline(dbc, &types.IncidentTimelineEntry{
		IncidentID: a1.ID, Kind: noc.TimelineKindNote, Message: "looking",
	}); err != nil {
		t.Fatalf("AppendTimeline: %v", err)
	}
	full, err := repo.GetByIDWithTimeline(dbc, a.ID, a1.ID)
	if err != nil {
		t.Fatalf("GetByIDWithTimeline: %v", err)
	}
	if full == nil || len(full.Timeline) != 1 {
		t.Fatalf("timeline: want=1 got=%v", full)
	}
}

func TestMetricRollupRepoUpsertIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMetricRollupRepo(db, testutil.Logger(t))

	tenantID := uuid.New()
	bucket := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	row := func(sum float64) []*types.MetricRollup {
		return []*types.MetricRollup{{
			TenantID: tenantID, Resolution: noc.Resolution5m, BucketStart: bucket,
			Metric: noc.MetricAlertsOpen, Count: 5, Sum: sum, Min: 1, Max: 3, Last: 2, LastAt: bucket.Add(4 * time.Minute),
		}}
	}
	if err := repo.Upsert(dbc, row(10)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(dbc, row(12)); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	got, err := repo.ListRange(dbc, tenantID, noc.Resolution5m, bucket, bucket.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows: want=1 got=%d", len(got))
	}
	if got[0].Sum != 12 {
		t.Fatalf("sum: want=12 got=%v", got[0].Sum)
	}

	stats, err := repo.Stats(dbc, tenantID, noc.Resolution5m)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Rows != 1 || stats.Samples != 5 {
		t.Fatalf("stats: want=1/5 got=%d/%d", stats.Rows, stats.Samples)
	}

	if err := repo.SetWatermark(dbc, tenantID, noc.Resolution5m, bucket); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	if err := repo.SetWatermark(dbc, tenantID, noc.Resolution5m, bucket.Add(5*time.Minute)); err != nil {
		t.Fatalf("SetWatermark again: %v", err)
	}
	wm, err := repo.GetWatermark(dbc, tenantID, noc.Resolution5m)
	if err != nil {
		t.Fatalf("GetWatermark: %v", err)
	}
	if wm == nil || !wm.RolledUntil.Equal(bucket.Add(5*time.Minute)) {
		t.Fatalf("watermark: want=%v got=%v", bucket.Add(5*time.Minute), wm)
	}
}

func TestPlaybookExecutionRepoLatestForKey(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewPlaybookExecutionRepo(db, testutil.Logger(t))

	tenantID, playbookID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	older := &types.PlaybookExecution{TenantID: tenantID, PlaybookID: playbookID, DedupKey: "k", Status: noc.ExecutionSucceeded, RequestedAt: now.Add(-time.Hour)}
	rejected := &types.PlaybookExecution{TenantID: tenantID, PlaybookID: playbookID, DedupKey: "k", Status: noc.ExecutionRejected, RequestedAt: now}
	for _, e := range []*types.PlaybookExecution{older, rejected} {
		if err := repo.Create(dbc, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	got, err := repo.LatestForKey(dbc, tenantID, playbookID, "k")
	if err != nil {
		t.Fatalf("LatestForKey: %v", err)
	}
	if got == nil || got.ID != older.ID {
		t.Fatalf("latest: want=%v got=%v", older.ID, got)
	}

	ok, err := repo.UpdateFieldsIfStatus(dbc, rejected.ID, []string{noc.ExecutionPendingApproval}, map[string]interface{}{"status": noc.ExecutionQueued})
	if err != nil {
		t.Fatalf("UpdateFieldsIfStatus: %v", err)
	}
	if ok {
		t.Fatalf("approve rejected: want=false got=true")
	}
}
