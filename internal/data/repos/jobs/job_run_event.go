package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type JobRunEventRepo interface {
	Append(dbc dbctx.Context, ev *types.JobRunEvent) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
	DeleteBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{db: db, log: baseLog.With("repo", "JobRunEventRepo")}
}

func (r *jobRunEventRepo) Append(dbc dbctx.Context, ev *types.JobRunEvent) error {
	if ev == nil || ev.JobID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Create(ev).Error
}

func (r *jobRunEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.JobRunEvent
	err := dbc.DB(r.db).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunEventRepo) DeleteBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("created_at < ?", cutoff).Delete(&types.JobRunEvent{})
	return res.RowsAffected, res.Error
}
