package auth

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Tenant struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string         `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Settings  datatypes.JSON `gorm:"column:settings;type:jsonb" json:"settings"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Tenant) TableName() string { return "tenant" }

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TenantSettings is the decoded form of Tenant.Settings.
type TenantSettings struct {
	Timezone             string            `json:"timezone,omitempty"`
	BusinessHoursStart   int               `json:"business_hours_start,omitempty"`
	BusinessHoursEnd     int               `json:"business_hours_end,omitempty"`
	CorrelationThreshold float64           `json:"correlation_threshold,omitempty"`
	EntityCriticality    map[string]string `json:"entity_criticality,omitempty"`
}

// DecodeSettings never fails; malformed settings decode to defaults.
func (t *Tenant) DecodeSettings() TenantSettings {
	out := TenantSettings{BusinessHoursStart: 9, BusinessHoursEnd: 18}
	if t == nil || len(t.Settings) == 0 {
		return out
	}
	_ = json.Unmarshal(t.Settings, &out)
	if out.BusinessHoursEnd <= out.BusinessHoursStart {
		out.BusinessHoursStart, out.BusinessHoursEnd = 9, 18
	}
	return out
}

// Location resolves the tenant timezone, UTC when unset or unknown.
func (s TenantSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InBusinessHours reports whether at falls on a weekday inside the window.
func (s TenantSettings) InBusinessHours(at time.Time) bool {
	local := at.In(s.Location())
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	h := local.Hour()
	return h >= s.BusinessHoursStart && h < s.BusinessHoursEnd
}
