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

type AlertFilter struct {
	Statuses   []string
	Severities []string
	EntityType string
	EntityID   string
	Priority   string
	Since      *time.Time
	Limit      int
	Offset     int
}

// AlertCounts feeds metric snapshots.
type AlertCounts struct {
	Open             int64
	CriticalOpen     int64
	SuppressedTotal  int64
	PriorityScoreAvg float64
}

type AlertRepo interface {
	Create(dbc dbctx.Context, alert *types.AlertEvent) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.AlertEvent, error)
	GetByIDs(dbc dbctx.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*types.AlertEvent, error)
	GetActiveByDedupKey(dbc dbctx.Context, tenantID uuid.UUID, dedupKey string) (*types.AlertEvent, error)
	GetResolvedByDedupKeySince(dbc dbctx.Context, tenantID uuid.UUID, dedupKey string, since time.Time) (*types.AlertEvent, error)
	GetActiveByFingerprint(dbc dbctx.Context, tenantID uuid.UUID, fingerprint string) (*types.AlertEvent, error)
	UpdateFields(dbc dbctx.Context, tenantID, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfStatus(dbc dbctx.Context, tenantID, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, f AlertFilter) ([]*types.AlertEvent, int64, error)
	ListByCorrelation(dbc dbctx.Context, tenantID, groupID uuid.UUID) ([]*types.AlertEvent, error)
	ListByIncident(dbc dbctx.Context, tenantID, incidentID uuid.UUID) ([]*types.AlertEvent, error)
	ListActiveUncorrelated(dbc dbctx.Context, tenantID uuid.UUID, limit int) ([]*types.AlertEvent, error)
	ListActive(dbc dbctx.Context, tenantID uuid.UUID, limit int) ([]*types.AlertEvent, error)
	CountActiveInGroup(dbc dbctx.Context, tenantID, groupID uuid.UUID) (int64, error)
	CountFirstSeenBetween(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) (int64, error)
	Counts(dbc dbctx.Context, tenantID uuid.UUID) (AlertCounts, error)
	LinkIncident(dbc dbctx.Context, tenantID uuid.UUID, alertIDs []uuid.UUID, incidentID uuid.UUID) error
}

type alertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return &alertRepo{db: db, log: baseLog.With("repo", "AlertRepo")}
}

// Create inserts a new alert. A concurrent active alert with the same
// dedup key surfaces as gorm.ErrDuplicatedKey.
func (r *alertRepo) Create(dbc dbctx.Context, alert *types.AlertEvent) error {
	return dbc.DB(r.db).Create(alert).Error
}

func (r *alertRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.AlertEvent, error) {
	var out []*types.AlertEvent
	if err := dbc.DB(r.db).Where("tenant_id = ? AND id = ?", tenantID, id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *alertRepo) GetByIDs(dbc dbctx.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*types.AlertEvent, error) {
	var out []*types.AlertEvent
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *alertRepo) GetActiveByDedupKey(dbc dbctx.Context, tenantID uuid.UUID, dedupKey string) (*types.AlertEvent, error) {
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND dedup_key = ? AND status IN ?", tenantID, dedupKey, noc.ActiveAlertStatuses).
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

func (r *alertRepo) GetResolvedByDedupKeySince(dbc dbctx.Context, tenantID uuid.UUID, dedupKey string, since time.Time) (*types.AlertEvent, error) {
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND dedup_key = ? AND status = ? AND resolved_at >= ?", tenantID, dedupKey, noc.AlertStatusResolved, since).
		Order("resolved_at DESC").
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

func (r *alertRepo) GetActiveByFingerprint(dbc dbctx.Context, tenantID uuid.UUID, fingerprint string) (*types.AlertEvent, error) {
	if fingerprint == "" {
		return nil, nil
	}
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND fingerprint = ? AND status IN ?", tenantID, fingerprint, noc.ActiveAlertStatuses).
		Order("last_seen_at DESC").
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

func (r *alertRepo) UpdateFields(dbc dbctx.Context, tenantID, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.AlertEvent{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates).Error
}

// UpdateFieldsIfStatus applies updates only while the row is in one of allowed.
func (r *alertRepo) UpdateFieldsIfStatus(dbc dbctx.Context, tenantID, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&types.AlertEvent{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantID, id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *alertRepo) List(dbc dbctx.Context, tenantID uuid.UUID, f AlertFilter) ([]*types.AlertEvent, int64, error) {
	q := dbc.DB(r.db).Model(&types.AlertEvent{}).Where("tenant_id = ?", tenantID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if len(f.Severities) > 0 {
		q = q.Where("severity IN ?", f.Severities)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Since != nil {
		q = q.Where("last_seen_at >= ?", *f.Since)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []*types.AlertEvent
	err := q.Order("priority_score DESC").Order("last_seen_at DESC").
		Limit(limit).Offset(f.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *alertRepo) ListByCorrelation(dbc dbctx.Context, tenantID, groupID uuid.UUID) ([]*types.AlertEvent, error) {
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND correlated_incident_id = ?", tenantID, groupID).
		Order("first_seen_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *alertRepo) ListByIncident(dbc dbctx.Context, tenantID, incidentID uuid.UUID) ([]*types.AlertEvent, error) {
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND incident_id = ?", tenantID, incidentID).
		Order("first_seen_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *alertRepo) ListActiveUncorrelated(dbc dbctx.Context, tenantID uuid.UUID, limit int) ([]*types.AlertEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND status IN ? AND correlated_incident_id IS NULL", tenantID, noc.ActiveAlertStatuses).
		Order("last_seen_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *alertRepo) ListActive(dbc dbctx.Context, tenantID uuid.UUID, limit int) ([]*types.AlertEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []*types.AlertEvent
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND status IN ?", tenantID, noc.ActiveAlertStatuses).
		Order("last_seen_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *alertRepo) CountActiveInGroup(dbc dbctx.Context, tenantID, groupID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.AlertEvent{}).
		Where("tenant_id = ? AND correlated_incident_id = ? AND status IN ?", tenantID, groupID, noc.ActiveAlertStatuses).
		Count(&n).Error
	return n, err
}

func (r *alertRepo) CountFirstSeenBetween(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.AlertEvent{}).
		Where("tenant_id = ? AND first_seen_at >= ? AND first_seen_at < ?", tenantID, from, to).
		Count(&n).Error
	return n, err
}

func (r *alertRepo) Counts(dbc dbctx.Context, tenantID uuid.UUID) (AlertCounts, error) {
	var row struct {
		Open         int64
		CriticalOpen int64
		ScoreAvg     *float64
	}
	err := dbc.DB(r.db).Model(&types.AlertEvent{}).
		Select(
			"COUNT(*) AS open, "+
				"COALESCE(SUM(CASE WHEN severity = ? THEN 1 ELSE 0 END), 0) AS critical_open, "+
				"AVG(priority_score) AS score_avg",
			noc.SeverityCritical,
		).
		Where("tenant_id = ? AND status IN ?", tenantID, noc.ActiveAlertStatuses).
		Scan(&row).Error
	if err != nil {
		return AlertCounts{}, err
	}
	var suppressed struct{ Total int64 }
	err = dbc.DB(r.db).Model(&types.AlertEvent{}).
		Select("COALESCE(SUM(suppressed_count), 0) AS total").
		Where("tenant_id = ?", tenantID).
		Scan(&suppressed).Error
	if err != nil {
		return AlertCounts{}, err
	}
	out := AlertCounts{
		Open:            row.Open,
		CriticalOpen:    row.CriticalOpen,
		SuppressedTotal: suppressed.Total,
	}
	if row.ScoreAvg != nil {
		out.PriorityScoreAvg = *row.ScoreAvg
	}
	return out, nil
}

func (r *alertRepo) LinkIncident(dbc dbctx.Context, tenantID uuid.UUID, alertIDs []uuid.UUID, incidentID uuid.UUID) error {
	if len(alertIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.AlertEvent{}).
		Where("tenant_id = ? AND id IN ?", tenantID, alertIDs).
		Updates(map[string]interface{}{"incident_id": incidentID, "updated_at": time.Now().UTC()}).Error
}
