package metric_snapshot_capture

import (
	"time"

	jobrt "github.com/yungbote/noc-backend/internal/jobs/runtime"
)

// Run captures one tenant when the run is tenant-scoped, else every tenant.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	now := time.Now().UTC()
	if tenantID, ok := jc.TenantID(); ok {
		jc.Progress("capture", 10, "Capturing tenant snapshot")
		snap, err := p.metrics.CaptureSnapshot(jc.DBC(), tenantID, now)
		if err != nil {
			jc.Fail("capture", err)
			return nil
		}
		jc.Succeed("done", map[string]any{"snapshot_id": snap.ID, "captured_at": snap.CapturedAt})
		return nil
	}

	jc.Progress("capture", 10, "Capturing snapshots for all tenants")
	n, err := p.metrics.CaptureAll(jc.DBC(), now)
	if err != nil {
		p.log.Warn("snapshot capture incomplete", "captured", n, "error", err)
		jc.Fail("capture", err)
		return nil
	}
	jc.Succeed("done", map[string]any{"tenants": n})
	return nil
}
