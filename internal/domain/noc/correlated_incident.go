package noc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CorrelationStatusActive = "active"
	CorrelationStatusClosed = "closed"
)

// CorrelatedIncident groups alerts that likely share a root cause.
type CorrelatedIncident struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RootAlertID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"root_alert_id"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	Severity     Severity       `gorm:"column:severity;not null" json:"severity"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Confidence   float64        `gorm:"column:confidence;not null;default:0" json:"confidence"`
	AlertCount   int            `gorm:"column:alert_count;not null;default:0" json:"alert_count"`
	EntityKeys   datatypes.JSON `gorm:"column:entity_keys;type:jsonb" json:"entity_keys"`
	FirstAlertAt time.Time      `gorm:"column:first_alert_at;not null" json:"first_alert_at"`
	LastAlertAt  time.Time      `gorm:"column:last_alert_at;not null;index" json:"last_alert_at"`
	ClosedAt     *time.Time     `gorm:"column:closed_at" json:"closed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (CorrelatedIncident) TableName() string { return "noc_correlated_incident" }

func (c *CorrelatedIncident) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *CorrelatedIncident) EntityKeyList() []string {
	var out []string
	if c == nil || len(c.EntityKeys) == 0 {
		return out
	}
	_ = json.Unmarshal(c.EntityKeys, &out)
	return out
}

// AddEntityKey appends key when missing and reports whether the list changed.
func (c *CorrelatedIncident) AddEntityKey(key string) bool {
	if key == "" {
		return false
	}
	keys := c.EntityKeyList()
	for _, k := range keys {
		if k == key {
			return false
		}
	}
	keys = append(keys, key)
	b, _ := json.Marshal(keys)
	c.EntityKeys = datatypes.JSON(b)
	return true
}
