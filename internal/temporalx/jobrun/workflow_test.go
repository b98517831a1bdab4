package jobrun

import (
	"context"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/yungbote/noc-backend/internal/domain/jobs"
)

func runWorkflow(t *testing.T, status string) error {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	var gotID string
	env.RegisterActivityWithOptions(func(ctx context.Context, jobID string) (RunResult, error) {
		gotID = jobID
		return RunResult{JobID: jobID, Status: status, Stage: "run", Error: "boom"}, nil
	}, activity.RegisterOptions{Name: ActivityRun})
	env.ExecuteWorkflow(Workflow, "job-123")
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow not completed")
	}
	if gotID != "job-123" {
		t.Fatalf("activity job id: want=%q got=%q", "job-123", gotID)
	}
	return env.GetWorkflowError()
}

func TestWorkflowCompletesOnSuccess(t *testing.T) {
	if err := runWorkflow(t, jobs.StatusSucceeded); err != nil {
		t.Fatalf("succeeded job: want=nil got=%v", err)
	}
}

func TestWorkflowCompletesOnCancel(t *testing.T) {
	if err := runWorkflow(t, jobs.StatusCanceled); err != nil {
		t.Fatalf("canceled job: want=nil got=%v", err)
	}
}

func TestWorkflowErrorsOnFailure(t *testing.T) {
	if err := runWorkflow(t, jobs.StatusFailed); err == nil {
		t.Fatalf("failed job: want error got=nil")
	}
}

func TestWorkflowIgnoresUnclaimableJob(t *testing.T) {
	if err := runWorkflow(t, jobs.StatusRunning); err != nil {
		t.Fatalf("running elsewhere: want=nil got=%v", err)
	}
}
