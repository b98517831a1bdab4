package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ExperimentDraft   = "draft"
	ExperimentRunning = "running"
	ExperimentStopped = "stopped"
)

const (
	ExperimentEventExposure   = "exposure"
	ExperimentEventConversion = "conversion"
)

type Variant struct {
	Key    string  `json:"key" validate:"required"`
	Weight float64 `json:"weight" validate:"gt=0"`
}

type Experiment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_experiment_tenant_key" json:"tenant_id"`
	Key            string         `gorm:"column:key;not null;uniqueIndex:idx_experiment_tenant_key" json:"key"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Description    string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	TrafficPercent float64        `gorm:"column:traffic_percent;not null;default:100" json:"traffic_percent"`
	Variants       datatypes.JSON `gorm:"column:variants;type:jsonb" json:"variants"`
	StartedAt      *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	StoppedAt      *time.Time     `gorm:"column:stopped_at" json:"stopped_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (Experiment) TableName() string { return "experiment" }

func (e *Experiment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *Experiment) VariantList() []Variant {
	var out []Variant
	if e != nil && len(e.Variants) > 0 {
		_ = json.Unmarshal(e.Variants, &out)
	}
	return out
}

func (e *Experiment) SetVariants(v []Variant) {
	b, _ := json.Marshal(v)
	e.Variants = datatypes.JSON(b)
}

type ExperimentAssignment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ExperimentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_exp_user" json:"experiment_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_exp_user" json:"user_id"`
	Variant      string    `gorm:"column:variant;not null;index" json:"variant"`
	Bucket       int       `gorm:"column:bucket;not null" json:"bucket"`
	AssignedAt   time.Time `gorm:"column:assigned_at;not null" json:"assigned_at"`
}

func (ExperimentAssignment) TableName() string { return "experiment_assignment" }

func (a *ExperimentAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type ExperimentEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ExperimentID uuid.UUID `gorm:"type:uuid;not null;index:idx_experiment_event,priority:1" json:"experiment_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_experiment_event,priority:3" json:"user_id"`
	Variant      string    `gorm:"column:variant;not null" json:"variant"`
	Kind         string    `gorm:"column:kind;not null;index:idx_experiment_event,priority:2" json:"kind"`
	Value        float64   `gorm:"column:value;not null;default:0" json:"value"`
	OccurredAt   time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

func (ExperimentEvent) TableName() string { return "experiment_event" }

func (e *ExperimentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
