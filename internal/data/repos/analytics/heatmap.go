package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type HeatmapQuery struct {
	Path   string
	Device string
	Since  *time.Time
	Until  *time.Time
}

type SelectorCount struct {
	Selector string `json:"selector"`
	Count    int64  `json:"count"`
}

type HeatmapRepo interface {
	CreateBatch(dbc dbctx.Context, clicks []*types.HeatmapClick) error
	ListPoints(dbc dbctx.Context, tenantID uuid.UUID, q HeatmapQuery) ([]*types.HeatmapClick, error)
	TopSelectors(dbc dbctx.Context, tenantID uuid.UUID, q HeatmapQuery, limit int) ([]SelectorCount, error)
	DeleteBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type heatmapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHeatmapRepo(db *gorm.DB, baseLog *logger.Logger) HeatmapRepo {
	return &heatmapRepo{db: db, log: baseLog.With("repo", "HeatmapRepo")}
}

func (r *heatmapRepo) CreateBatch(dbc dbctx.Context, clicks []*types.HeatmapClick) error {
	if len(clicks) == 0 {
		return nil
	}
	return dbc.DB(r.db).CreateInBatches(clicks, 500).Error
}

func (r *heatmapRepo) scoped(dbc dbctx.Context, tenantID uuid.UUID, q HeatmapQuery) *gorm.DB {
	db := dbc.DB(r.db).Model(&types.HeatmapClick{}).Where("tenant_id = ? AND path = ?", tenantID, q.Path)
	if q.Device != "" {
		db = db.Where("device = ?", q.Device)
	}
	if q.Since != nil {
		db = db.Where("occurred_at >= ?", *q.Since)
	}
	if q.Until != nil {
		db = db.Where("occurred_at < ?", *q.Until)
	}
	return db
}

// ListPoints returns only the coordinate columns.
func (r *heatmapRepo) ListPoints(dbc dbctx.Context, tenantID uuid.UUID, q HeatmapQuery) ([]*types.HeatmapClick, error) {
	var out []*types.HeatmapClick
	if err := r.scoped(dbc, tenantID, q).Select("x_ratio", "y_ratio").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *heatmapRepo) TopSelectors(dbc dbctx.Context, tenantID uuid.UUID, q HeatmapQuery, limit int) ([]SelectorCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []SelectorCount
	err := r.scoped(dbc, tenantID, q).
		Select("selector, COUNT(*) AS count").
		Where("selector <> ''").
		Group("selector").
		Order("count DESC").Order("selector ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *heatmapRepo) DeleteBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("occurred_at < ?", cutoff).Delete(&types.HeatmapClick{})
	return res.RowsAffected, res.Error
}
