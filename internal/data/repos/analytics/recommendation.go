package analytics

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type RecommendationRepo interface {
	ReplaceContent(dbc dbctx.Context, tenantID, userID uuid.UUID, recs []*types.ContentRecommendation) error
	ListContent(dbc dbctx.Context, tenantID, userID uuid.UUID, limit int) ([]*types.ContentRecommendation, error)
	ReplaceNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, recs []*types.NavigationRecommendation) error
	ListNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, limit int) ([]*types.NavigationRecommendation, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{db: db, log: baseLog.With("repo", "RecommendationRepo")}
}

// ReplaceContent swaps the user's persisted content recommendations.
// Callers wanting atomicity pass a Tx.
func (r *recommendationRepo) ReplaceContent(dbc dbctx.Context, tenantID, userID uuid.UUID, recs []*types.ContentRecommendation) error {
	db := dbc.DB(r.db)
	if err := db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Delete(&types.ContentRecommendation{}).Error; err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return db.Create(&recs).Error
}

func (r *recommendationRepo) ListContent(dbc dbctx.Context, tenantID, userID uuid.UUID, limit int) ([]*types.ContentRecommendation, error) {
	q := dbc.DB(r.db).Where("tenant_id = ? AND user_id = ?", tenantID, userID).Order("score DESC").Order("content_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ContentRecommendation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recommendationRepo) ReplaceNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, recs []*types.NavigationRecommendation) error {
	db := dbc.DB(r.db)
	err := db.Where("tenant_id = ? AND user_id = ? AND from_path = ?", tenantID, userID, fromPath).
		Delete(&types.NavigationRecommendation{}).Error
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return db.Create(&recs).Error
}

func (r *recommendationRepo) ListNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, limit int) ([]*types.NavigationRecommendation, error) {
	q := dbc.DB(r.db).
		Where("tenant_id = ? AND user_id = ? AND from_path = ?", tenantID, userID, fromPath).
		Order("score DESC").Order("to_path ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.NavigationRecommendation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
