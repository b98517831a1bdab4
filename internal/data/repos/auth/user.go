package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	EmailExists(dbc dbctx.Context, email string) (bool, error)
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.User, error)
	ListByTenantAndRoles(dbc dbctx.Context, tenantID uuid.UUID, roles []string) ([]*types.User, error)
	TouchLogin(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	for _, u := range users {
		u.Email = normalizeEmail(u.Email)
	}
	if err := dbc.DB(r.db).Omit("Tenant").Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.User
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	var out []*types.User
	if err := dbc.DB(r.db).Where("email = ?", normalizeEmail(email)).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *userRepo) EmailExists(dbc dbctx.Context, email string) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.User{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepo) ListByTenantAndRoles(dbc dbctx.Context, tenantID uuid.UUID, roles []string) ([]*types.User, error) {
	var out []*types.User
	q := dbc.DB(r.db).Where("tenant_id = ?", tenantID)
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepo) TouchLogin(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return dbc.DB(r.db).Model(&types.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_login_at": at, "updated_at": at}).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
