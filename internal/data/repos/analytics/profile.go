package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type BehaviorProfileRepo interface {
	GetByUser(dbc dbctx.Context, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error)
	GetByUserForUpdate(dbc dbctx.Context, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error)
	EnsureForUpdate(dbc dbctx.Context, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error)
	Save(dbc dbctx.Context, p *types.UserBehaviorProfile) error
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID, activeSince *time.Time) ([]*types.UserBehaviorProfile, error)
}

type behaviorProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBehaviorProfileRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorProfileRepo {
	return &behaviorProfileRepo{db: db, log: baseLog.With("repo", "BehaviorProfileRepo")}
}

func (r *behaviorProfileRepo) GetByUser(dbc dbctx.Context, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error) {
	return r.get(dbc.DB(r.db), tenantID, userID)
}

func (r *behaviorProfileRepo) GetByUserForUpdate(dbc dbctx.Context, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, userID)
}

// EnsureForUpdate inserts an empty profile when none exists and returns the
// locked row. Concurrent first writers converge on the same row.
func (r *behaviorProfileRepo) EnsureForUpdate(dbc dbctx.Context, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error) {
	now := time.Now().UTC()
	blank := &types.UserBehaviorProfile{TenantID: tenantID, UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(blank).Error; err != nil {
		return nil, err
	}
	p, err := r.GetByUserForUpdate(dbc, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *behaviorProfileRepo) get(q *gorm.DB, tenantID, userID uuid.UUID) (*types.UserBehaviorProfile, error) {
	var out []*types.UserBehaviorProfile
	if err := q.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *behaviorProfileRepo) Save(dbc dbctx.Context, p *types.UserBehaviorProfile) error {
	now := time.Now().UTC()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return dbc.DB(r.db).Save(p).Error
}

func (r *behaviorProfileRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID, activeSince *time.Time) ([]*types.UserBehaviorProfile, error) {
	q := dbc.DB(r.db).Where("tenant_id = ?", tenantID)
	if activeSince != nil {
		q = q.Where("last_active_at >= ?", *activeSince)
	}
	var out []*types.UserBehaviorProfile
	if err := q.Order("last_active_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type NavigationTransitionRepo interface {
	Increment(dbc dbctx.Context, tenantID uuid.UUID, fromPath, toPath string) error
	ListFrom(dbc dbctx.Context, tenantID uuid.UUID, fromPath string) ([]*types.NavigationTransition, error)
}

type navigationTransitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNavigationTransitionRepo(db *gorm.DB, baseLog *logger.Logger) NavigationTransitionRepo {
	return &navigationTransitionRepo{db: db, log: baseLog.With("repo", "NavigationTransitionRepo")}
}

func (r *navigationTransitionRepo) Increment(dbc dbctx.Context, tenantID uuid.UUID, fromPath, toPath string) error {
	now := time.Now().UTC()
	row := &types.NavigationTransition{
		TenantID:  tenantID,
		FromPath:  fromPath,
		ToPath:    toPath,
		Count:     1,
		UpdatedAt: now,
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "from_path"}, {Name: "to_path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("navigation_transition.count + 1"),
			"updated_at": now,
		}),
	}).Create(row).Error
}

func (r *navigationTransitionRepo) ListFrom(dbc dbctx.Context, tenantID uuid.UUID, fromPath string) ([]*types.NavigationTransition, error) {
	var out []*types.NavigationTransition
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND from_path = ?", tenantID, fromPath).
		Order("count DESC").Order("to_path ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
