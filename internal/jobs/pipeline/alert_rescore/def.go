package alert_rescore

import (
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

type Pipeline struct {
	log      *logger.Logger
	priority services.PriorityService
}

func New(baseLog *logger.Logger, priority services.PriorityService) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", jobs.TypeAlertRescore),
		priority: priority,
	}
}

func (p *Pipeline) Type() string { return jobs.TypeAlertRescore }
