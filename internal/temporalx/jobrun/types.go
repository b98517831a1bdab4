package jobrun

import "github.com/yungbote/noc-backend/internal/services"

const (
	WorkflowName = services.JobWorkflowName
	ActivityRun  = "noc.jobrun.run"
)

// RunResult is the job row state after one activity attempt.
type RunResult struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}
