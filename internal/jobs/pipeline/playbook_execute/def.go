package playbook_execute

import (
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

type Pipeline struct {
	log       *logger.Logger
	playbooks services.PlaybookService
}

func New(baseLog *logger.Logger, playbooks services.PlaybookService) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", jobs.TypePlaybookExecute),
		playbooks: playbooks,
	}
}

func (p *Pipeline) Type() string { return jobs.TypePlaybookExecute }
