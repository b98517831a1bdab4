package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

// Executor runs a claimed job; the poll worker satisfies it.
type Executor interface {
	Execute(ctx context.Context, job *types.JobRun) *jobrt.Context
}

type Activities struct {
	Log      *logger.Logger
	Jobs     repos.JobRunRepo
	Executor Executor
}

func result(job *types.JobRun) RunResult {
	return RunResult{
		JobID:    job.ID.String(),
		Status:   job.Status,
		Stage:    job.Stage,
		Attempts: job.Attempts,
		Error:    job.Error,
	}
}

// Run claims the job row and executes it in-process. A row that is not
// claimable is reported as-is.
func (a *Activities) Run(ctx context.Context, jobID string) (RunResult, error) {
	res := RunResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Jobs == nil || a.Executor == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id %q", jobID)
	}

	dbc := dbctx.Context{Ctx: ctx}
	job, err := a.Jobs.ClaimByID(dbc, id)
	if err != nil {
		return res, err
	}
	if job == nil {
		rows, err := a.Jobs.GetByIDs(dbc, []uuid.UUID{id})
		if err != nil {
			return res, err
		}
		if len(rows) == 0 {
			return res, fmt.Errorf("jobrun: job %s not found", id)
		}
		return result(rows[0]), nil
	}

	stop := a.heartbeat(ctx)
	defer stop()
	a.Executor.Execute(ctx, job)
	return result(job), nil
}

func (a *Activities) heartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
