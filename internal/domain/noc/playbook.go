package noc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionNotify           = "notify"
	ActionWebhook          = "webhook"
	ActionEmail            = "email"
	ActionSMS              = "sms"
	ActionAcknowledgeAlert = "acknowledge_alert"
	ActionEscalatePriority = "escalate_priority"
	ActionCreateIncident   = "create_incident"
	ActionAnnotate         = "annotate"
	ActionWait             = "wait"
)

var KnownActions = []string{
	ActionNotify, ActionWebhook, ActionEmail, ActionSMS, ActionAcknowledgeAlert,
	ActionEscalatePriority, ActionCreateIncident, ActionAnnotate, ActionWait,
}

func IsKnownAction(a string) bool {
	for _, k := range KnownActions {
		if k == a {
			return true
		}
	}
	return false
}

type PlaybookTrigger struct {
	AlertTypes  []string          `json:"alert_types,omitempty" yaml:"alert_types"`
	MinSeverity Severity          `json:"min_severity,omitempty" yaml:"min_severity" validate:"omitempty,oneof=critical high medium low info"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels"`
}

type PlaybookStep struct {
	Name            string         `json:"name" yaml:"name" validate:"required"`
	Action          string         `json:"action" yaml:"action" validate:"required,playbook_action"`
	Params          map[string]any `json:"params,omitempty" yaml:"params"`
	ContinueOnError bool           `json:"continue_on_error,omitempty" yaml:"continue_on_error"`
}

type Playbook struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_playbook_tenant_name" json:"tenant_id"`
	Name             string         `gorm:"column:name;not null;uniqueIndex:idx_playbook_tenant_name" json:"name"`
	Description      string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Enabled          bool           `gorm:"column:enabled;not null;default:true" json:"enabled"`
	Trigger          datatypes.JSON `gorm:"column:trigger;type:jsonb" json:"trigger"`
	Steps            datatypes.JSON `gorm:"column:steps;type:jsonb" json:"steps"`
	RequiresApproval bool           `gorm:"column:requires_approval;not null;default:false" json:"requires_approval"`
	CooldownMinutes  int            `gorm:"column:cooldown_minutes;not null;default:0" json:"cooldown_minutes"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Playbook) TableName() string { return "noc_playbook" }

func (p *Playbook) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Playbook) DecodeTrigger() PlaybookTrigger {
	var t PlaybookTrigger
	if p != nil && len(p.Trigger) > 0 {
		_ = json.Unmarshal(p.Trigger, &t)
	}
	return t
}

func (p *Playbook) DecodeSteps() []PlaybookStep {
	var s []PlaybookStep
	if p != nil && len(p.Steps) > 0 {
		_ = json.Unmarshal(p.Steps, &s)
	}
	return s
}

func (p *Playbook) SetTrigger(t PlaybookTrigger) {
	b, _ := json.Marshal(t)
	p.Trigger = datatypes.JSON(b)
}

func (p *Playbook) SetSteps(steps []PlaybookStep) {
	if steps == nil {
		steps = []PlaybookStep{}
	}
	b, _ := json.Marshal(steps)
	p.Steps = datatypes.JSON(b)
}

const (
	ExecutionPendingApproval = "pending_approval"
	ExecutionQueued          = "queued"
	ExecutionRunning         = "running"
	ExecutionSucceeded       = "succeeded"
	ExecutionFailed          = "failed"
	ExecutionRejected        = "rejected"
	ExecutionCancelled       = "cancelled"
)

const (
	StepStatusSucceeded = "succeeded"
	StepStatusFailed    = "failed"
	StepStatusSkipped   = "skipped"
)

type StepResult struct {
	Step       string     `json:"step"`
	Action     string     `json:"action"`
	Status     string     `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type PlaybookExecution struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PlaybookID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"playbook_id"`
	AlertID     *uuid.UUID     `gorm:"type:uuid;column:alert_id;index" json:"alert_id,omitempty"`
	DedupKey    string         `gorm:"column:dedup_key;index" json:"dedup_key,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	RequestedAt time.Time      `gorm:"column:requested_at;not null;index" json:"requested_at"`
	ApprovedBy  *uuid.UUID     `gorm:"type:uuid;column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time     `gorm:"column:approved_at" json:"approved_at,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	StepResults datatypes.JSON `gorm:"column:step_results;type:jsonb" json:"step_results"`
	JobID       *uuid.UUID     `gorm:"type:uuid;column:job_id" json:"job_id,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (PlaybookExecution) TableName() string { return "noc_playbook_execution" }

func (e *PlaybookExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *PlaybookExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionSucceeded, ExecutionFailed, ExecutionRejected, ExecutionCancelled:
		return true
	}
	return false
}
