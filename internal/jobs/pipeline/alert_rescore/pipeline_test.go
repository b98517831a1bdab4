package alert_rescore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
	"github.com/yungbote/noc-backend/internal/jobs/worker"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/services"
)

func TestRescoreJobRunsThroughWorker(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	jobRepo := repos.NewJobRunRepo(db, log)
	jobSvc := services.NewJobService(db, log, jobRepo, nil, nil, "")
	tenant := testutil.SeedTenant(t, ctx, db, "rescore").ID
	testutil.SeedAlert(t, ctx, db, tenant, nil)

	prio := services.NewPriorityService(log, nil,
		repos.NewAlertRepo(db, log),
		repos.NewCorrelationRepo(db, log),
		repos.NewTenantRepo(db, log),
		nil,
	)
	reg := jobrt.NewRegistry()
	if err := reg.Register(New(log, prio)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	scoped, err := jobSvc.Enqueue(dbc, services.EnqueueRequest{TenantID: &tenant, JobType: jobs.TypeAlertRescore})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	unscoped, err := jobSvc.Enqueue(dbc, services.EnqueueRequest{JobType: jobs.TypeAlertRescore})
	if err != nil {
		t.Fatalf("Enqueue unscoped: %v", err)
	}

	w := worker.NewWorker(db, log, jobRepo, reg, nil, nil, worker.Config{})
	for i := 0; i < 2; i++ {
		if ran, err := w.RunOnce(ctx); err != nil || !ran {
			t.Fatalf("RunOnce %d: ran=%v err=%v", i, ran, err)
		}
	}

	rows, err := jobRepo.GetByIDs(dbc, []uuid.UUID{scoped.ID, unscoped.ID})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: n=%d err=%v", len(rows), err)
	}
	for _, r := range rows {
		switch r.ID {
		case scoped.ID:
			if r.Status != jobs.StatusSucceeded {
				t.Fatalf("scoped job: want=%s got=%s (%s)", jobs.StatusSucceeded, r.Status, r.Error)
			}
			var out struct {
				Rescored int  `json:"rescored"`
				Model    bool `json:"model"`
			}
			if err := json.Unmarshal(r.Result, &out); err != nil {
				t.Fatalf("result: %v", err)
			}
			if out.Rescored != 1 || out.Model {
				t.Fatalf("result: want rescored=1 model=false got=%+v", out)
			}
		case unscoped.ID:
			if r.Status != jobs.StatusFailed || r.Stage != "validate" {
				t.Fatalf("unscoped job: want failed/validate got=%s/%s", r.Status, r.Stage)
			}
		}
	}
}
