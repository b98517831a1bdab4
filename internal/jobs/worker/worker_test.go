package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/jobs/runtime"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/services"
)

func TestWorkerRunOnceRecordsOutcomes(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := repos.NewJobRunRepo(db, log)
	jobSvc := services.NewJobService(db, log, repo, nil, nil, "")

	reg := runtime.NewRegistry()
	var seenPayload string
	mustRegister(t, reg, runtime.HandlerFunc{JobType: "echo", Fn: func(jc *runtime.Context) error {
		seenPayload = jc.PayloadString("msg")
		jc.Progress("echo", 50, "halfway")
		return nil
	}})
	mustRegister(t, reg, runtime.HandlerFunc{JobType: "boom", Fn: func(*runtime.Context) error {
		return errors.New("device unreachable")
	}})
	mustRegister(t, reg, runtime.HandlerFunc{JobType: "panic", Fn: func(*runtime.Context) error {
		panic("nil map")
	}})

	var ids []uuid.UUID
	for _, jt := range []string{"echo", "boom", "panic", "unregistered"} {
		job, err := jobSvc.Enqueue(dbc, services.EnqueueRequest{JobType: jt, Payload: map[string]any{"msg": "hi"}})
		if err != nil {
			t.Fatalf("Enqueue %s: %v", jt, err)
		}
		ids = append(ids, job.ID)
	}

	w := NewWorker(db, log, repo, reg, nil, nil, Config{})
	for i := 0; i < len(ids); i++ {
		ran, err := w.RunOnce(ctx)
		if err != nil || !ran {
			t.Fatalf("RunOnce %d: ran=%v err=%v", i, ran, err)
		}
	}
	ran, err := w.RunOnce(ctx)
	if err != nil || ran {
		t.Fatalf("drained queue: ran=%v err=%v", ran, err)
	}
	if seenPayload != "hi" {
		t.Fatalf("payload: want=hi got=%q", seenPayload)
	}

	rows, err := repo.GetByIDs(dbc, ids)
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	byType := map[string]string{}
	stage := map[string]string{}
	for _, r := range rows {
		byType[r.JobType] = r.Status
		stage[r.JobType] = r.Stage
		if r.Attempts != 1 {
			t.Fatalf("%s attempts: want=1 got=%d", r.JobType, r.Attempts)
		}
	}
	want := map[string]string{
		"echo":         jobs.StatusSucceeded,
		"boom":         jobs.StatusFailed,
		"panic":        jobs.StatusFailed,
		"unregistered": jobs.StatusFailed,
	}
	for jt, st := range want {
		if byType[jt] != st {
			t.Fatalf("%s status: want=%s got=%s", jt, st, byType[jt])
		}
	}
	if stage["panic"] != "panic" || stage["unregistered"] != "dispatch" {
		t.Fatalf("failure stages: panic=%s unregistered=%s", stage["panic"], stage["unregistered"])
	}
}

func TestWorkerSkipsCanceledJob(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := repos.NewJobRunRepo(db, log)
	jobSvc := services.NewJobService(db, log, repo, nil, nil, "")
	tenant := testutil.SeedTenant(t, ctx, db, "acme").ID

	job, err := jobSvc.Enqueue(dbc, services.EnqueueRequest{TenantID: &tenant, JobType: "echo"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := jobSvc.CancelForTenant(dbc, tenant, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	reg := runtime.NewRegistry()
	mustRegister(t, reg, runtime.HandlerFunc{JobType: "echo", Fn: func(*runtime.Context) error {
		t.Fatalf("canceled job must not run")
		return nil
	}})
	w := NewWorker(db, log, repo, reg, nil, nil, Config{Concurrency: 2})
	if ran, err := w.RunOnce(ctx); err != nil || ran {
		t.Fatalf("RunOnce: ran=%v err=%v", ran, err)
	}
}

func mustRegister(t *testing.T, reg *runtime.Registry, h runtime.Handler) {
	t.Helper()
	if err := reg.Register(h); err != nil {
		t.Fatalf("Register %s: %v", h.Type(), err)
	}
}
