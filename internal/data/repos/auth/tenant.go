package auth

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type TenantRepo interface {
	Create(dbc dbctx.Context, tenant *types.Tenant) (*types.Tenant, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Tenant, error)
	GetBySlug(dbc dbctx.Context, slug string) (*types.Tenant, error)
	SlugExists(dbc dbctx.Context, slug string) (bool, error)
	ListIDs(dbc dbctx.Context) ([]uuid.UUID, error)
	List(dbc dbctx.Context) ([]*types.Tenant, error)
}

type tenantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTenantRepo(db *gorm.DB, baseLog *logger.Logger) TenantRepo {
	return &tenantRepo{db: db, log: baseLog.With("repo", "TenantRepo")}
}

func (r *tenantRepo) Create(dbc dbctx.Context, tenant *types.Tenant) (*types.Tenant, error) {
	if err := dbc.DB(r.db).Create(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Tenant, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Tenant
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *tenantRepo) GetBySlug(dbc dbctx.Context, slug string) (*types.Tenant, error) {
	var out []*types.Tenant
	if err := dbc.DB(r.db).Where("slug = ?", slug).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *tenantRepo) SlugExists(dbc dbctx.Context, slug string) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.Tenant{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *tenantRepo) ListIDs(dbc dbctx.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).Model(&types.Tenant{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *tenantRepo) List(dbc dbctx.Context) ([]*types.Tenant, error) {
	var out []*types.Tenant
	if err := dbc.DB(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
