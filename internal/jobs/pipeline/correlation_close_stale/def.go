package correlation_close_stale

import (
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

type Pipeline struct {
	log         *logger.Logger
	correlation services.CorrelationService
}

func New(baseLog *logger.Logger, correlation services.CorrelationService) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", jobs.TypeCorrelationCloseStale),
		correlation: correlation,
	}
}

func (p *Pipeline) Type() string { return jobs.TypeCorrelationCloseStale }
