package recommendation_refresh

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
	jc.Progress("refresh", 10, "Recomputing recommendations")
	n, err := p.recommendations.Refresh(jc.DBC(), tenantID)
	if err != nil {
		jc.Fail("refresh", err)
		return nil
	}
	jc.Succeed("done", map[string]any{"users": n})
	return nil
}
