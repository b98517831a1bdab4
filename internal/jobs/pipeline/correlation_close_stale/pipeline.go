package correlation_close_stale

import (
	"errors"
	"time"

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
	n, err := p.correlation.CloseStale(jc.DBC(), tenantID, time.Now().UTC())
	if err != nil {
		jc.Fail("close", err)
		return nil
	}
	jc.Succeed("done", map[string]any{"closed": n})
	return nil
}
