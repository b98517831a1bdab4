package noc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

// TierStats summarises one storage tier for one tenant.
type TierStats struct {
	Rows    int64
	Samples int64
	Oldest  *time.Time
	Newest  *time.Time
}

type MetricSnapshotRepo interface {
	Create(dbc dbctx.Context, snap *types.MetricSnapshot) error
	Latest(dbc dbctx.Context, tenantID uuid.UUID) (*types.MetricSnapshot, error)
	LatestBefore(dbc dbctx.Context, tenantID uuid.UUID, before time.Time) (*types.MetricSnapshot, error)
	ListRange(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) ([]*types.MetricSnapshot, error)
	DeleteBefore(dbc dbctx.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error)
	Stats(dbc dbctx.Context, tenantID uuid.UUID) (TierStats, error)
}

type metricSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetricSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) MetricSnapshotRepo {
	return &metricSnapshotRepo{db: db, log: baseLog.With("repo", "MetricSnapshotRepo")}
}

func (r *metricSnapshotRepo) Create(dbc dbctx.Context, snap *types.MetricSnapshot) error {
	return dbc.DB(r.db).Create(snap).Error
}

func (r *metricSnapshotRepo) Latest(dbc dbctx.Context, tenantID uuid.UUID) (*types.MetricSnapshot, error) {
	var out []*types.MetricSnapshot
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("captured_at DESC").Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *metricSnapshotRepo) LatestBefore(dbc dbctx.Context, tenantID uuid.UUID, before time.Time) (*types.MetricSnapshot, error) {
	var out []*types.MetricSnapshot
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND captured_at <= ?", tenantID, before).
		Order("captured_at DESC").
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

// ListRange returns snapshots with from <= captured_at < to, oldest first.
func (r *metricSnapshotRepo) ListRange(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) ([]*types.MetricSnapshot, error) {
	var out []*types.MetricSnapshot
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND captured_at >= ? AND captured_at < ?", tenantID, from, to).
		Order("captured_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *metricSnapshotRepo) DeleteBefore(dbc dbctx.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("tenant_id = ? AND captured_at < ?", tenantID, cutoff).Delete(&types.MetricSnapshot{})
	return res.RowsAffected, res.Error
}

func (r *metricSnapshotRepo) Stats(dbc dbctx.Context, tenantID uuid.UUID) (TierStats, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.MetricSnapshot{}).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		return TierStats{}, err
	}
	out := TierStats{Rows: n, Samples: n}
	if n == 0 {
		return out, nil
	}
	var first, last types.MetricSnapshot
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("captured_at ASC").Limit(1).Find(&first).Error; err != nil {
		return TierStats{}, err
	}
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("captured_at DESC").Limit(1).Find(&last).Error; err != nil {
		return TierStats{}, err
	}
	out.Oldest = &first.CapturedAt
	out.Newest = &last.CapturedAt
	return out, nil
}

type MetricRollupRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.MetricRollup) error
	ListRange(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, from, to time.Time, metrics []string) ([]*types.MetricRollup, error)
	DeleteBefore(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, cutoff time.Time) (int64, error)
	Stats(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution) (TierStats, error)
	GetWatermark(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution) (*types.RollupWatermark, error)
	SetWatermark(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, until time.Time) error
}

type metricRollupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetricRollupRepo(db *gorm.DB, baseLog *logger.Logger) MetricRollupRepo {
	return &metricRollupRepo{db: db, log: baseLog.With("repo", "MetricRollupRepo")}
}

// Upsert writes rows keyed on (tenant, resolution, bucket, metric),
// replacing the aggregate columns of existing rows.
func (r *metricRollupRepo) Upsert(dbc dbctx.Context, rows []*types.MetricRollup) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = now
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "resolution"}, {Name: "bucket_start"}, {Name: "metric"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"count", "sum", "min", "max", "last", "last_at", "updated_at"}),
	}).CreateInBatches(rows, 500).Error
}

func (r *metricRollupRepo) ListRange(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, from, to time.Time, metrics []string) ([]*types.MetricRollup, error) {
	q := dbc.DB(r.db).
		Where("tenant_id = ? AND resolution = ? AND bucket_start >= ? AND bucket_start < ?", tenantID, res, from, to)
	if len(metrics) > 0 {
		q = q.Where("metric IN ?", metrics)
	}
	var out []*types.MetricRollup
	if err := q.Order("bucket_start ASC").Order("metric ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *metricRollupRepo) DeleteBefore(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, cutoff time.Time) (int64, error) {
	out := dbc.DB(r.db).
		Where("tenant_id = ? AND resolution = ? AND bucket_start < ?", tenantID, res, cutoff).
		Delete(&types.MetricRollup{})
	return out.RowsAffected, out.Error
}

func (r *metricRollupRepo) Stats(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution) (TierStats, error) {
	var row struct {
		RowCount int64
		Samples  int64
	}
	err := dbc.DB(r.db).Model(&types.MetricRollup{}).
		Select("COUNT(*) AS row_count, COALESCE(SUM(count), 0) AS samples").
		Where("tenant_id = ? AND resolution = ?", tenantID, res).
		Scan(&row).Error
	if err != nil {
		return TierStats{}, err
	}
	out := TierStats{Rows: row.RowCount, Samples: row.Samples}
	if row.RowCount == 0 {
		return out, nil
	}
	var first, last types.MetricRollup
	base := func() *gorm.DB {
		return dbc.DB(r.db).Where("tenant_id = ? AND resolution = ?", tenantID, res)
	}
	if err := base().Order("bucket_start ASC").Limit(1).Find(&first).Error; err != nil {
		return TierStats{}, err
	}
	if err := base().Order("bucket_start DESC").Limit(1).Find(&last).Error; err != nil {
		return TierStats{}, err
	}
	out.Oldest = &first.BucketStart
	out.Newest = &last.BucketStart
	return out, nil
}

func (r *metricRollupRepo) GetWatermark(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution) (*types.RollupWatermark, error) {
	var out []*types.RollupWatermark
	if err := dbc.DB(r.db).Where("tenant_id = ? AND resolution = ?", tenantID, res).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *metricRollupRepo) SetWatermark(dbc dbctx.Context, tenantID uuid.UUID, res noc.Resolution, until time.Time) error {
	wm := &types.RollupWatermark{
		TenantID:    tenantID,
		Resolution:  res,
		RolledUntil: until.UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "resolution"}},
		DoUpdates: clause.AssignmentColumns([]string{"rolled_until", "updated_at"}),
	}).Create(wm).Error
}
