package noc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type CorrelationRepo interface {
	Create(dbc dbctx.Context, group *types.CorrelatedIncident) error
	Save(dbc dbctx.Context, group *types.CorrelatedIncident) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.CorrelatedIncident, error)
	ListActiveSince(dbc dbctx.Context, tenantID uuid.UUID, since time.Time) ([]*types.CorrelatedIncident, error)
	ListActiveBefore(dbc dbctx.Context, tenantID uuid.UUID, before time.Time) ([]*types.CorrelatedIncident, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.CorrelatedIncident, int64, error)
	Close(dbc dbctx.Context, tenantID, id uuid.UUID, at time.Time) (bool, error)
}

type correlationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorrelationRepo(db *gorm.DB, baseLog *logger.Logger) CorrelationRepo {
	return &correlationRepo{db: db, log: baseLog.With("repo", "CorrelationRepo")}
}

func (r *correlationRepo) Create(dbc dbctx.Context, group *types.CorrelatedIncident) error {
	return dbc.DB(r.db).Create(group).Error
}

func (r *correlationRepo) Save(dbc dbctx.Context, group *types.CorrelatedIncident) error {
	return dbc.DB(r.db).Save(group).Error
}

func (r *correlationRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.CorrelatedIncident, error) {
	var out []*types.CorrelatedIncident
	if err := dbc.DB(r.db).Where("tenant_id = ? AND id = ?", tenantID, id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *correlationRepo) ListActiveSince(dbc dbctx.Context, tenantID uuid.UUID, since time.Time) ([]*types.CorrelatedIncident, error) {
	var out []*types.CorrelatedIncident
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND status = ? AND last_alert_at >= ?", tenantID, noc.CorrelationStatusActive, since).
		Order("last_alert_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *correlationRepo) ListActiveBefore(dbc dbctx.Context, tenantID uuid.UUID, before time.Time) ([]*types.CorrelatedIncident, error) {
	var out []*types.CorrelatedIncident
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND status = ? AND last_alert_at < ?", tenantID, noc.CorrelationStatusActive, before).
		Order("last_alert_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *correlationRepo) List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.CorrelatedIncident, int64, error) {
	q := dbc.DB(r.db).Model(&types.CorrelatedIncident{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.CorrelatedIncident
	if err := q.Order("last_alert_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *correlationRepo) Close(dbc dbctx.Context, tenantID, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).Model(&types.CorrelatedIncident{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, noc.CorrelationStatusActive).
		Updates(map[string]interface{}{"status": noc.CorrelationStatusClosed, "closed_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
