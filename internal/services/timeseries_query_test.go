package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
)

func TestTimeSeriesQueryRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	svc := NewTimeSeriesQueryService(f.log, NOCConfig{}, repos.NewMetricSnapshotRepo(f.db, f.log), repos.NewMetricRollupRepo(f.db, f.log))
	tenant := f.tenant(t)
	now := time.Now().UTC()

	cases := []struct {
		name string
		q    SeriesQuery
		code string
	}{
		{"unknown metric", SeriesQuery{Metric: "bogus"}, "unknown_metric"},
		{"bad resolution", SeriesQuery{Metric: noc.MetricAlertsOpen, Resolution: "7m"}, "invalid_resolution"},
		{"reversed range", SeriesQuery{Metric: noc.MetricAlertsOpen, Start: now, End: now.Add(-time.Hour), Resolution: "1h"}, "invalid_range"},
		{"reversed auto range", SeriesQuery{Metric: noc.MetricAlertsOpen, Start: now, End: now.Add(-time.Hour)}, "invalid_range"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Query(f.dbc, tenant, tc.q)
			if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != tc.code {
				t.Fatalf("error: want=400/%s got=%d/%s", tc.code, status, code)
			}
		})
	}
}

func TestTimeSeriesQueryCachesSettledRanges(t *testing.T) {
	f := newFixture(t)
	snaps := repos.NewMetricSnapshotRepo(f.db, f.log)
	svc := NewTimeSeriesQueryService(f.log, NOCConfig{}, snaps, repos.NewMetricRollupRepo(f.db, f.log))
	tenant := f.tenant(t)

	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Minute)
	for i, open := range []float64{3, 5} {
		snap := &types.MetricSnapshot{TenantID: tenant, CapturedAt: base.Add(time.Duration(i) * time.Minute), AlertsOpen: open, CreatedAt: base}
		if err := snaps.Create(f.dbc, snap); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}

	q := SeriesQuery{Metric: noc.MetricAlertsOpen, Start: base.Add(-time.Minute), End: base.Add(10 * time.Minute), Resolution: "raw"}
	first, err := svc.Query(f.dbc, tenant, q)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if first.Cached {
		t.Fatalf("first query: want uncached")
	}
	if len(first.Points) != 2 || first.Points[1].Value != 5 {
		t.Fatalf("points: want 2 ending at 5 got=%+v", first.Points)
	}

	second, err := svc.Query(f.dbc, tenant, q)
	if err != nil {
		t.Fatalf("Query again: %v", err)
	}
	if !second.Cached || len(second.Points) != 2 {
		t.Fatalf("second query: cached=%v points=%d", second.Cached, len(second.Points))
	}

	live := SeriesQuery{Metric: noc.MetricAlertsOpen, Start: time.Now().UTC().Add(-time.Hour), Resolution: "raw"}
	for i := 0; i < 2; i++ {
		got, err := svc.Query(f.dbc, tenant, live)
		if err != nil {
			t.Fatalf("live query: %v", err)
		}
		if got.Cached {
			t.Fatalf("live range: want uncached on call %d", i)
		}
	}
}

func TestMetricsSummaryDeltas(t *testing.T) {
	f := newFixture(t)
	snaps := repos.NewMetricSnapshotRepo(f.db, f.log)
	svc := NewTimeSeriesQueryService(f.log, NOCConfig{}, snaps, repos.NewMetricRollupRepo(f.db, f.log))
	tenant := f.tenant(t)

	empty, err := svc.Summary(f.dbc, tenant, time.Hour)
	if err != nil || empty.Latest != nil {
		t.Fatalf("empty summary: latest=%v err=%v", empty, err)
	}

	now := time.Now().UTC()
	seed := []*types.MetricSnapshot{
		{TenantID: tenant, CapturedAt: now.Add(-2 * time.Hour), AlertsOpen: 4, CreatedAt: now},
		{TenantID: tenant, CapturedAt: now.Add(-time.Minute), AlertsOpen: 10, CreatedAt: now},
	}
	for _, s := range seed {
		if err := snaps.Create(f.dbc, s); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
	got, err := svc.Summary(f.dbc, tenant, time.Hour)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got.Previous == nil {
		t.Fatalf("previous: want set got=nil")
	}
	if d := got.Deltas[noc.MetricAlertsOpen]; d != 6 {
		t.Fatalf("alerts_open delta: want=6 got=%v", d)
	}
}
