package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobEventCreated   = "created"
	JobEventProgress  = "progress"
	JobEventFailed    = "failed"
	JobEventSucceeded = "succeeded"
	JobEventCanceled  = "canceled"
)

// JobRunEvent is the append-only timeline of a job run.
type JobRunEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	TenantID  *uuid.UUID     `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	JobType   string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Kind      string         `gorm:"column:kind;not null;index" json:"kind"`
	Stage     string         `gorm:"column:stage" json:"stage"`
	Progress  int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message   string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (JobRunEvent) TableName() string { return "job_run_event" }

func (e *JobRunEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
