package noc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type PlaybookRepo interface {
	Create(dbc dbctx.Context, pb *types.Playbook) error
	Save(dbc dbctx.Context, pb *types.Playbook) error
	Delete(dbc dbctx.Context, tenantID, id uuid.UUID) (bool, error)
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Playbook, error)
	GetByName(dbc dbctx.Context, tenantID uuid.UUID, name string) (*types.Playbook, error)
	List(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Playbook, error)
	ListEnabled(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Playbook, error)
}

type playbookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlaybookRepo(db *gorm.DB, baseLog *logger.Logger) PlaybookRepo {
	return &playbookRepo{db: db, log: baseLog.With("repo", "PlaybookRepo")}
}

func (r *playbookRepo) Create(dbc dbctx.Context, pb *types.Playbook) error {
	return dbc.DB(r.db).Create(pb).Error
}

func (r *playbookRepo) Save(dbc dbctx.Context, pb *types.Playbook) error {
	pb.UpdatedAt = time.Now().UTC()
	return dbc.DB(r.db).Save(pb).Error
}

func (r *playbookRepo) Delete(dbc dbctx.Context, tenantID, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&types.Playbook{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *playbookRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Playbook, error) {
	var out []*types.Playbook
	if err := dbc.DB(r.db).Where("tenant_id = ? AND id = ?", tenantID, id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *playbookRepo) GetByName(dbc dbctx.Context, tenantID uuid.UUID, name string) (*types.Playbook, error) {
	var out []*types.Playbook
	if err := dbc.DB(r.db).Where("tenant_id = ? AND name = ?", tenantID, name).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *playbookRepo) List(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Playbook, error) {
	var out []*types.Playbook
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *playbookRepo) ListEnabled(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Playbook, error) {
	var out []*types.Playbook
	if err := dbc.DB(r.db).Where("tenant_id = ? AND enabled = ?", tenantID, true).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
