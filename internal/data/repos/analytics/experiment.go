package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type ExperimentRepo interface {
	Create(dbc dbctx.Context, e *types.Experiment) error
	Save(dbc dbctx.Context, e *types.Experiment) error
	GetByKey(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, status string) ([]*types.Experiment, error)
}

type experimentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperimentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentRepo {
	return &experimentRepo{db: db, log: baseLog.With("repo", "ExperimentRepo")}
}

func (r *experimentRepo) Create(dbc dbctx.Context, e *types.Experiment) error {
	return dbc.DB(r.db).Create(e).Error
}

func (r *experimentRepo) Save(dbc dbctx.Context, e *types.Experiment) error {
	e.UpdatedAt = time.Now().UTC()
	return dbc.DB(r.db).Save(e).Error
}

func (r *experimentRepo) GetByKey(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error) {
	var out []*types.Experiment
	if err := dbc.DB(r.db).Where("tenant_id = ? AND key = ?", tenantID, key).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *experimentRepo) List(dbc dbctx.Context, tenantID uuid.UUID, status string) ([]*types.Experiment, error) {
	q := dbc.DB(r.db).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.Experiment
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ExperimentAssignmentRepo interface {
	Create(dbc dbctx.Context, a *types.ExperimentAssignment) error
	Get(dbc dbctx.Context, experimentID, userID uuid.UUID) (*types.ExperimentAssignment, error)
	CountByVariant(dbc dbctx.Context, experimentID uuid.UUID) (map[string]int64, error)
}

type experimentAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperimentAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentAssignmentRepo {
	return &experimentAssignmentRepo{db: db, log: baseLog.With("repo", "ExperimentAssignmentRepo")}
}

func (r *experimentAssignmentRepo) Create(dbc dbctx.Context, a *types.ExperimentAssignment) error {
	return dbc.DB(r.db).Create(a).Error
}

func (r *experimentAssignmentRepo) Get(dbc dbctx.Context, experimentID, userID uuid.UUID) (*types.ExperimentAssignment, error) {
	var out []*types.ExperimentAssignment
	err := dbc.DB(r.db).Where("experiment_id = ? AND user_id = ?", experimentID, userID).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

type variantCount struct {
	Variant string
	N       int64
}

func (r *experimentAssignmentRepo) CountByVariant(dbc dbctx.Context, experimentID uuid.UUID) (map[string]int64, error) {
	var rows []variantCount
	err := dbc.DB(r.db).Model(&types.ExperimentAssignment{}).
		Select("variant, COUNT(*) AS n").
		Where("experiment_id = ?", experimentID).
		Group("variant").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Variant] = row.N
	}
	return out, nil
}

type ExperimentEventRepo interface {
	Create(dbc dbctx.Context, e *types.ExperimentEvent) error
	CountUsersByVariant(dbc dbctx.Context, experimentID uuid.UUID, kind string) (map[string]int64, error)
}

type experimentEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperimentEventRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentEventRepo {
	return &experimentEventRepo{db: db, log: baseLog.With("repo", "ExperimentEventRepo")}
}

func (r *experimentEventRepo) Create(dbc dbctx.Context, e *types.ExperimentEvent) error {
	return dbc.DB(r.db).Create(e).Error
}

// CountUsersByVariant counts distinct users with at least one event of kind.
func (r *experimentEventRepo) CountUsersByVariant(dbc dbctx.Context, experimentID uuid.UUID, kind string) (map[string]int64, error) {
	var rows []variantCount
	err := dbc.DB(r.db).Model(&types.ExperimentEvent{}).
		Select("variant, COUNT(DISTINCT user_id) AS n").
		Where("experiment_id = ? AND kind = ?", experimentID, kind).
		Group("variant").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Variant] = row.N
	}
	return out, nil
}
