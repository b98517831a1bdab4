package alert_rescore

import (
	"errors"

	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	tenantID, ok := jc.TenantID()
	if !ok {
		jc.Fail("validate", errors.New("tenant required"))
		return nil
	}
	jc.Progress("score", 10, "Rescoring active alerts")
	n, err := p.priority.Rescore(jc.DBC(), tenantID)
	if err != nil {
		jc.Fail("score", err)
		return nil
	}
	jc.Succeed("done", map[string]any{"rescored": n, "model": p.priority.UsingModel()})
	return nil
}
