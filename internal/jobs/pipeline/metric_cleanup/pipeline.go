package metric_cleanup

import (
	"time"

	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("cleanup", 5, "Applying retention")
	report, err := p.metrics.Cleanup(jc.DBC(), time.Now().UTC())
	if err != nil {
		jc.Fail("cleanup", err)
		return nil
	}
	jc.Succeed("done", report)
	return nil
}
