package noc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	IncidentStatusOpen          = "open"
	IncidentStatusAcknowledged  = "acknowledged"
	IncidentStatusInvestigating = "investigating"
	IncidentStatusResolved      = "resolved"
	IncidentStatusClosed        = "closed"
)

var incidentTransitions = map[string][]string{
	IncidentStatusOpen:          {IncidentStatusAcknowledged, IncidentStatusInvestigating, IncidentStatusResolved},
	IncidentStatusAcknowledged:  {IncidentStatusInvestigating, IncidentStatusResolved},
	IncidentStatusInvestigating: {IncidentStatusResolved},
	IncidentStatusResolved:      {IncidentStatusClosed, IncidentStatusOpen},
	IncidentStatusClosed:        {},
}

// CanTransitionIncident reports whether from→to is an allowed lifecycle edge.
func CanTransitionIncident(from, to string) bool {
	for _, s := range incidentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Incident struct {
	ID                   uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID             uuid.UUID                `gorm:"type:uuid;not null;index;uniqueIndex:idx_incident_tenant_number" json:"tenant_id"`
	Number               int                      `gorm:"column:number;not null;uniqueIndex:idx_incident_tenant_number" json:"number"`
	Title                string                   `gorm:"column:title;not null" json:"title"`
	Description          string                   `gorm:"column:description;type:text" json:"description,omitempty"`
	Severity             Severity                 `gorm:"column:severity;not null;index" json:"severity"`
	Status               string                   `gorm:"column:status;not null;index" json:"status"`
	AssigneeID           *uuid.UUID               `gorm:"type:uuid;column:assignee_id;index" json:"assignee_id,omitempty"`
	CorrelatedIncidentID *uuid.UUID               `gorm:"type:uuid;column:correlated_incident_id;index" json:"correlated_incident_id,omitempty"`
	OpenedAt             time.Time                `gorm:"column:opened_at;not null;index" json:"opened_at"`
	AcknowledgedAt       *time.Time               `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt           *time.Time               `gorm:"column:resolved_at;index" json:"resolved_at,omitempty"`
	ClosedAt             *time.Time               `gorm:"column:closed_at" json:"closed_at,omitempty"`
	Timeline             []*IncidentTimelineEntry `gorm:"foreignKey:IncidentID;constraint:OnDelete:CASCADE" json:"timeline,omitempty"`
	CreatedAt            time.Time                `gorm:"not null;index" json:"created_at"`
	UpdatedAt            time.Time                `gorm:"not null" json:"updated_at"`
}

func (Incident) TableName() string { return "noc_incident" }

func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

const (
	TimelineKindCreated    = "created"
	TimelineKindTransition = "transition"
	TimelineKindAssigned   = "assigned"
	TimelineKindNote       = "note"
)

type IncidentTimelineEntry struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"incident_id"`
	Kind       string     `gorm:"column:kind;not null" json:"kind"`
	Message    string     `gorm:"column:message;type:text" json:"message"`
	ActorID    *uuid.UUID `gorm:"type:uuid;column:actor_id" json:"actor_id,omitempty"`
	At         time.Time  `gorm:"column:at;not null;index" json:"at"`
}

func (IncidentTimelineEntry) TableName() string { return "noc_incident_timeline" }

func (e *IncidentTimelineEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
