package recommendation_refresh

import (
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

type Pipeline struct {
	log             *logger.Logger
	recommendations services.RecommendationService
}

func New(baseLog *logger.Logger, recommendations services.RecommendationService) *Pipeline {
	return &Pipeline{
		log:             baseLog.With("job", jobs.TypeRecommendationRefresh),
		recommendations: recommendations,
	}
}

func (p *Pipeline) Type() string { return jobs.TypeRecommendationRefresh }
