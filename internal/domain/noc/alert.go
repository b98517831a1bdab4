package noc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AlertStatusOpen         = "open"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
	AlertStatusSuppressed   = "suppressed"
)

// ActiveAlertStatuses are the statuses covered by the dedup uniqueness index.
var ActiveAlertStatuses = []string{AlertStatusOpen, AlertStatusAcknowledged}

const (
	PrioritySourceModel     = "model"
	PrioritySourceHeuristic = "heuristic"
)

// AlertEvent is a deduplicated alert. Repeated occurrences collapse into the
// active row sharing the same DedupKey and bump SuppressedCount.
type AlertEvent struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID             uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_alert_active_dedup,where:status <> 'resolved' AND status <> 'suppressed'" json:"tenant_id"`
	Source               string         `gorm:"column:source;not null;index" json:"source"`
	AlertType            string         `gorm:"column:alert_type;not null;index" json:"alert_type"`
	Severity             Severity       `gorm:"column:severity;not null;index" json:"severity"`
	EntityType           string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID             string         `gorm:"column:entity_id;index" json:"entity_id,omitempty"`
	Title                string         `gorm:"column:title;not null" json:"title"`
	Message              string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Labels               datatypes.JSON `gorm:"column:labels;type:jsonb" json:"labels,omitempty"`
	Fingerprint          string         `gorm:"column:fingerprint;index" json:"fingerprint,omitempty"`
	DedupKey             string         `gorm:"column:dedup_key;not null;index;uniqueIndex:idx_alert_active_dedup,where:status <> 'resolved' AND status <> 'suppressed'" json:"dedup_key"`
	Status               string         `gorm:"column:status;not null;index" json:"status"`
	SuppressedCount      int            `gorm:"column:suppressed_count;not null;default:0" json:"suppressed_count"`
	FirstSeenAt          time.Time      `gorm:"column:first_seen_at;not null;index" json:"first_seen_at"`
	LastSeenAt           time.Time      `gorm:"column:last_seen_at;not null;index" json:"last_seen_at"`
	AcknowledgedAt       *time.Time     `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy       *uuid.UUID     `gorm:"type:uuid;column:acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt           *time.Time     `gorm:"column:resolved_at;index" json:"resolved_at,omitempty"`
	ResolvedBy           *uuid.UUID     `gorm:"type:uuid;column:resolved_by" json:"resolved_by,omitempty"`
	PriorityScore        float64        `gorm:"column:priority_score;not null;default:0;index" json:"priority_score"`
	Priority             string         `gorm:"column:priority;index" json:"priority"`
	PrioritySource       string         `gorm:"column:priority_source" json:"priority_source"`
	CorrelatedIncidentID *uuid.UUID     `gorm:"type:uuid;column:correlated_incident_id;index" json:"correlated_incident_id,omitempty"`
	IncidentID           *uuid.UUID     `gorm:"type:uuid;column:incident_id;index" json:"incident_id,omitempty"`
	CreatedAt            time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
}

func (AlertEvent) TableName() string { return "noc_alert_event" }

func (a *AlertEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *AlertEvent) IsActive() bool {
	return a.Status == AlertStatusOpen || a.Status == AlertStatusAcknowledged
}

// LabelMap decodes Labels; malformed JSON yields an empty map.
func (a *AlertEvent) LabelMap() map[string]string {
	out := map[string]string{}
	if a == nil || len(a.Labels) == 0 {
		return out
	}
	_ = json.Unmarshal(a.Labels, &out)
	return out
}
