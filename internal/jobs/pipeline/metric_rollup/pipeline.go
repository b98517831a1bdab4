package metric_rollup

import (
	"fmt"
	"time"

	"github.com/yungbote/noc-backend/internal/domain/noc"
	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	raw := jc.PayloadString("resolution")
	res, ok := noc.ParseResolution(raw)
	if !ok || res == noc.ResolutionRaw {
		jc.Fail("validate", fmt.Errorf("invalid rollup resolution %q", raw))
		return nil
	}

	jc.Progress("rollup", 10, "Rolling up "+string(res))
	report, err := p.metrics.Rollup(jc.DBC(), res, time.Now().UTC())
	if err != nil {
		jc.Fail("rollup", err)
		return nil
	}
	if report.Skipped {
		p.log.Info("rollup skipped; another run holds the lock", "resolution", res)
	}
	jc.Succeed("done", report)
	return nil
}
