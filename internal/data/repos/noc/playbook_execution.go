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

type ExecutionFilter struct {
	Status     string
	PlaybookID *uuid.UUID
	AlertID    *uuid.UUID
	Limit      int
	Offset     int
}

type PlaybookExecutionRepo interface {
	Create(dbc dbctx.Context, exec *types.PlaybookExecution) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PlaybookExecution, error)
	GetByIDAnyTenant(dbc dbctx.Context, id uuid.UUID) (*types.PlaybookExecution, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, f ExecutionFilter) ([]*types.PlaybookExecution, int64, error)
	LatestForKey(dbc dbctx.Context, tenantID, playbookID uuid.UUID, dedupKey string) (*types.PlaybookExecution, error)
	CountRequestedBetween(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) (int64, error)
}

type playbookExecutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlaybookExecutionRepo(db *gorm.DB, baseLog *logger.Logger) PlaybookExecutionRepo {
	return &playbookExecutionRepo{db: db, log: baseLog.With("repo", "PlaybookExecutionRepo")}
}

func (r *playbookExecutionRepo) Create(dbc dbctx.Context, exec *types.PlaybookExecution) error {
	return dbc.DB(r.db).Create(exec).Error
}

func (r *playbookExecutionRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PlaybookExecution, error) {
	var out []*types.PlaybookExecution
	if err := dbc.DB(r.db).Where("tenant_id = ? AND id = ?", tenantID, id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// GetByIDAnyTenant is for job handlers, whose payload carries the tenant.
func (r *playbookExecutionRepo) GetByIDAnyTenant(dbc dbctx.Context, id uuid.UUID) (*types.PlaybookExecution, error) {
	var out []*types.PlaybookExecution
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *playbookExecutionRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := dbc.DB(r.db).Model(&types.PlaybookExecution{}).Where("id = ?", id)
	if len(allowed) > 0 {
		q = q.Where("status IN ?", allowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *playbookExecutionRepo) List(dbc dbctx.Context, tenantID uuid.UUID, f ExecutionFilter) ([]*types.PlaybookExecution, int64, error) {
	q := dbc.DB(r.db).Model(&types.PlaybookExecution{}).Where("tenant_id = ?", tenantID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PlaybookID != nil {
		q = q.Where("playbook_id = ?", *f.PlaybookID)
	}
	if f.AlertID != nil {
		q = q.Where("alert_id = ?", *f.AlertID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.PlaybookExecution
	if err := q.Order("requested_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// LatestForKey returns the newest non-rejected execution of playbookID for dedupKey.
func (r *playbookExecutionRepo) LatestForKey(dbc dbctx.Context, tenantID, playbookID uuid.UUID, dedupKey string) (*types.PlaybookExecution, error) {
	var out []*types.PlaybookExecution
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND playbook_id = ? AND dedup_key = ? AND status NOT IN ?",
			tenantID, playbookID, dedupKey, []string{noc.ExecutionRejected, noc.ExecutionCancelled}).
		Order("requested_at DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *playbookExecutionRepo) CountRequestedBetween(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.PlaybookExecution{}).
		Where("tenant_id = ? AND requested_at >= ? AND requested_at < ?", tenantID, from, to).
		Count(&n).Error
	return n, err
}
