package metric_snapshot_capture

import (
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

type Pipeline struct {
	log     *logger.Logger
	metrics services.MetricsService
}

func New(baseLog *logger.Logger, metrics services.MetricsService) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", jobs.TypeMetricSnapshotCapture),
		metrics: metrics,
	}
}

func (p *Pipeline) Type() string { return jobs.TypeMetricSnapshotCapture }
