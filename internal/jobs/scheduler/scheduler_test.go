package scheduler

import (
	"context"
	"testing"
	"time"

	redisclient "github.com/yungbote/noc-backend/internal/clients/redis"
	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	"github.com/yungbote/noc-backend/internal/services"
)

func TestDueTracksIntervals(t *testing.T) {
	s := New(testutil.Logger(t), nil, nil, nil, []Entry{
		{Name: "fast", JobType: "a", Interval: time.Minute},
		{Name: "slow", JobType: "b", Interval: time.Hour},
	})
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if got := len(s.Due(now)); got != 2 {
		t.Fatalf("first due: want=2 got=%d", got)
	}
	s.markRun("fast", now)
	s.markRun("slow", now)
	if got := len(s.Due(now.Add(30 * time.Second))); got != 0 {
		t.Fatalf("before interval: want=0 got=%d", got)
	}
	due := s.Due(now.Add(2 * time.Minute))
	if len(due) != 1 || due[0].Name != "fast" {
		t.Fatalf("after one minute: want=[fast] got=%+v", due)
	}
}

func TestTickEnqueuesOncePerPeerGroup(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	testutil.SeedTenant(t, ctx, db, "acme")
	testutil.SeedTenant(t, ctx, db, "globex")

	jobSvc := services.NewJobService(db, log, repos.NewJobRunRepo(db, log), nil, nil, "")
	tenants := repos.NewTenantRepo(db, log)
	entries := []Entry{
		{Name: "cleanup", JobType: "metric_cleanup", Interval: time.Hour},
		{Name: "rescore", JobType: "alert_rescore", Interval: 5 * time.Minute, PerTenant: true},
	}
	locker := redisclient.NewLocalLocker()
	now := time.Now().UTC()

	a := New(log, jobSvc, tenants, locker, entries)
	n, err := a.Tick(ctx, now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n != 3 {
		t.Fatalf("created: want=3 got=%d", n)
	}

	peer := New(log, jobSvc, tenants, locker, entries)
	if n, err := peer.Tick(ctx, now); err != nil || n != 0 {
		t.Fatalf("peer under held beat locks: n=%d err=%v", n, err)
	}

	fresh := New(log, jobSvc, tenants, redisclient.NewLocalLocker(), entries)
	if n, err := fresh.Tick(ctx, now); err != nil || n != 0 {
		t.Fatalf("idle guard: want=0 got n=%d err=%v", n, err)
	}
}

func TestSystemEntityIDStable(t *testing.T) {
	if SystemEntityID("rollup_5m") != SystemEntityID("rollup_5m") {
		t.Fatalf("SystemEntityID: want deterministic")
	}
	if SystemEntityID("rollup_5m") == SystemEntityID("rollup_1h") {
		t.Fatalf("SystemEntityID: want distinct per entry")
	}
}
