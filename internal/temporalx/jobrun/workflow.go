package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/noc-backend/internal/domain/jobs"
)

// Workflow runs one job row. A failed run returns an error so the workflow
// retry policy set at start time drives the next attempt.
func Workflow(ctx workflow.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		jobID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	if jobID == "" {
		return temporal.NewNonRetryableApplicationError("missing job_id", "invalid_input", nil)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var out RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityRun, jobID).Get(ctx, &out); err != nil {
		return err
	}
	switch out.Status {
	case jobs.StatusSucceeded, jobs.StatusCanceled:
		return nil
	case jobs.StatusFailed:
		return fmt.Errorf("job %s failed at stage %s: %s", jobID, out.Stage, out.Error)
	default:
		// Another runner holds the row; nothing to do here.
		workflow.GetLogger(ctx).Info("job not claimable", "job_id", jobID, "status", out.Status)
		return nil
	}
}
