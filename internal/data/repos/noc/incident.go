package noc

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type IncidentFilter struct {
	Statuses   []string
	Severities []string
	AssigneeID *uuid.UUID
	Limit      int
	Offset     int
}

type IncidentRepo interface {
	// Create assigns the next per-tenant Number and inserts the row.
	Create(dbc dbctx.Context, inc *types.Incident) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Incident, error)
	GetByIDWithTimeline(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Incident, error)
	GetByCorrelation(dbc dbctx.Context, tenantID, groupID uuid.UUID) (*types.Incident, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, tenantID, id uuid.UUID, expected string, updates map[string]interface{}) (bool, error)
	UpdateFields(dbc dbctx.Context, tenantID, id uuid.UUID, updates map[string]interface{}) error
	AppendTimeline(dbc dbctx.Context, entry *types.IncidentTimelineEntry) error
	List(dbc dbctx.Context, tenantID uuid.UUID, f IncidentFilter) ([]*types.Incident, int64, error)
	ListOpenedSince(dbc dbctx.Context, tenantID uuid.UUID, since time.Time) ([]*types.Incident, error)
	CountOpen(dbc dbctx.Context, tenantID uuid.UUID) (int64, error)
	CountResolvedBetween(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) (int64, error)
}

type incidentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIncidentRepo(db *gorm.DB, baseLog *logger.Logger) IncidentRepo {
	return &incidentRepo{db: db, log: baseLog.With("repo", "IncidentRepo")}
}

const numberAttempts = 5

func (r *incidentRepo) Create(dbc dbctx.Context, inc *types.Incident) error {
	var lastErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
			var last struct{ N int }
			if err := txx.Model(&types.Incident{}).
				Select("COALESCE(MAX(number), 0) AS n").
				Where("tenant_id = ?", inc.TenantID).
				Scan(&last).Error; err != nil {
				return err
			}
			inc.Number = last.N + 1
			return txx.Omit("Timeline").Create(inc).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		inc.ID = uuid.Nil
		lastErr = err
	}
	return lastErr
}

func (r *incidentRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Incident, error) {
	var out []*types.Incident
	if err := dbc.DB(r.db).Where("tenant_id = ? AND id = ?", tenantID, id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *incidentRepo) GetByIDWithTimeline(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Incident, error) {
	var out []*types.Incident
	err := dbc.DB(r.db).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("at ASC") }).
		Where("tenant_id = ? AND id = ?", tenantID, id).
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

func (r *incidentRepo) GetByCorrelation(dbc dbctx.Context, tenantID, groupID uuid.UUID) (*types.Incident, error) {
	var out []*types.Incident
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND correlated_incident_id = ? AND status <> ?", tenantID, groupID, noc.IncidentStatusClosed).
		Order("opened_at DESC").
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

// UpdateFieldsIfStatus is the compare-and-set used by lifecycle transitions.
func (r *incidentRepo) UpdateFieldsIfStatus(dbc dbctx.Context, tenantID, id uuid.UUID, expected string, updates map[string]interface{}) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&types.Incident{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *incidentRepo) UpdateFields(dbc dbctx.Context, tenantID, id uuid.UUID, updates map[string]interface{}) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.Incident{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates).Error
}

func (r *incidentRepo) AppendTimeline(dbc dbctx.Context, entry *types.IncidentTimelineEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(entry).Error
}

func (r *incidentRepo) List(dbc dbctx.Context, tenantID uuid.UUID, f IncidentFilter) ([]*types.Incident, int64, error) {
	q := dbc.DB(r.db).Model(&types.Incident{}).Where("tenant_id = ?", tenantID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if len(f.Severities) > 0 {
		q = q.Where("severity IN ?", f.Severities)
	}
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.Incident
	if err := q.Order("opened_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *incidentRepo) ListOpenedSince(dbc dbctx.Context, tenantID uuid.UUID, since time.Time) ([]*types.Incident, error) {
	var out []*types.Incident
	err := dbc.DB(r.db).
		Where("tenant_id = ? AND opened_at >= ?", tenantID, since).
		Order("opened_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *incidentRepo) CountOpen(dbc dbctx.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Incident{}).
		Where("tenant_id = ? AND status IN ?", tenantID, []string{
			noc.IncidentStatusOpen, noc.IncidentStatusAcknowledged, noc.IncidentStatusInvestigating,
		}).
		Count(&n).Error
	return n, err
}

func (r *incidentRepo) CountResolvedBetween(dbc dbctx.Context, tenantID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Incident{}).
		Where("tenant_id = ? AND resolved_at >= ? AND resolved_at < ?", tenantID, from, to).
		Count(&n).Error
	return n, err
}
