package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/timeseries"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
)

// NOCConfig tunes alert handling and the metric pipeline. Zero values take
// the defaults below.
type NOCConfig struct {
	DedupWindow          time.Duration
	CorrelationWindow    time.Duration
	CorrelationThreshold float64
	SnapshotInterval     time.Duration
	RollupGrace          time.Duration
	RollupConcurrency    int
	Retention            map[noc.Resolution]time.Duration
}

func (c NOCConfig) WithDefaults() NOCConfig {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 60 * time.Minute
	}
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = 15 * time.Minute
	}
	if c.CorrelationThreshold <= 0 {
		c.CorrelationThreshold = 0.6
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = time.Minute
	}
	if c.RollupGrace < 0 {
		c.RollupGrace = 0
	} else if c.RollupGrace == 0 {
		c.RollupGrace = time.Minute
	}
	if c.RollupConcurrency <= 0 {
		c.RollupConcurrency = 4
	}
	ret := map[noc.Resolution]time.Duration{}
	for res, d := range timeseries.DefaultRetention {
		ret[res] = d
	}
	for res, d := range c.Retention {
		if d > 0 {
			ret[res] = d
		}
	}
	c.Retention = ret
	return c
}

// tenantSettings returns decoded settings, defaults when the tenant is
// missing or the lookup fails.
func tenantSettings(dbc dbctx.Context, repo repos.TenantRepo, tenantID uuid.UUID) types.TenantSettings {
	if repo == nil {
		return (&types.Tenant{}).DecodeSettings()
	}
	t, err := repo.GetByID(dbc, tenantID)
	if err != nil || t == nil {
		return (&types.Tenant{}).DecodeSettings()
	}
	return t.DecodeSettings()
}
