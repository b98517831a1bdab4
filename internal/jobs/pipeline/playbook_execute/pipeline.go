package playbook_execute

import (
	"errors"

	"github.com/yungbote/noc-backend/internal/domain/noc"
	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	execID, ok := jc.PayloadUUID("execution_id")
	if !ok && jc.Job.EntityID != nil {
		execID, ok = *jc.Job.EntityID, true
	}
	if !ok {
		jc.Fail("validate", errors.New("execution_id required"))
		return nil
	}

	jc.Progress("execute", 10, "Running playbook steps")
	exec, err := p.playbooks.Execute(jc.DBC(), execID)
	if err != nil {
		jc.Fail("execute", err)
		return nil
	}
	result := map[string]any{"execution_id": exec.ID, "status": exec.Status}
	if exec.Status == noc.ExecutionFailed {
		// Step failures are recorded on the execution; retrying the job
		// would re-run side effects.
		p.log.Warn("playbook execution failed", "execution_id", exec.ID, "error", exec.Error)
		result["error"] = exec.Error
	}
	jc.Succeed("done", result)
	return nil
}
