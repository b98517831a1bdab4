package alert_recorrelate

import (
	"errors"

	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
)

var errNoTenant = errors.New("tenant required")

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	tenantID, ok := jc.TenantID()
	if !ok {
		jc.Fail("validate", errNoTenant)
		return nil
	}
	jc.Progress("correlate", 10, "Correlating uncorrelated alerts")
	n, err := p.correlation.Recorrelate(jc.DBC(), tenantID)
	if err != nil {
		jc.Fail("correlate", err)
		return nil
	}
	jc.Succeed("done", map[string]any{"correlated": n})
	return nil
}
