// Package playbook matches alerts against playbook triggers and validates
// playbook definitions.
package playbook

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

// Definition is the declarative form of a playbook (API body or YAML file).
type Definition struct {
	Tenant           string              `yaml:"tenant" json:"-"`
	Name             string              `yaml:"name" json:"name" validate:"required,max=120"`
	Description      string              `yaml:"description" json:"description"`
	Enabled          *bool               `yaml:"enabled" json:"enabled"`
	Trigger          noc.PlaybookTrigger `yaml:"trigger" json:"trigger"`
	Steps            []noc.PlaybookStep  `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
	RequiresApproval bool                `yaml:"requires_approval" json:"requires_approval"`
	CooldownMinutes  int                 `yaml:"cooldown_minutes" json:"cooldown_minutes" validate:"gte=0"`
}

type File struct {
	Playbooks []Definition `yaml:"playbooks"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "playbook_action", func(fl validator.FieldLevel) bool {
		return noc.IsKnownAction(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("playbook: register validation %q: %v", tag, err))
	}
}

// Validate checks struct tags plus step-name uniqueness.
func Validate(def Definition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("playbook %q: %w", def.Name, err)
	}
	seen := map[string]bool{}
	for _, s := range def.Steps {
		if seen[s.Name] {
			return fmt.Errorf("playbook %q: duplicate step %q", def.Name, s.Name)
		}
		seen[s.Name] = true
	}
	if def.Trigger.MinSeverity != "" && !def.Trigger.MinSeverity.Valid() {
		return fmt.Errorf("playbook %q: unknown min_severity %q", def.Name, def.Trigger.MinSeverity)
	}
	return nil
}

// Apply copies the definition onto a model row.
func Apply(def Definition, pb *types.Playbook) {
	pb.Name = strings.TrimSpace(def.Name)
	pb.Description = def.Description
	pb.Enabled = def.Enabled == nil || *def.Enabled
	pb.RequiresApproval = def.RequiresApproval
	pb.CooldownMinutes = def.CooldownMinutes
	pb.SetTrigger(def.Trigger)
	pb.SetSteps(def.Steps)
}

// LoadFile reads and validates a YAML playbook file.
func LoadFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbooks: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse playbooks: %w", err)
	}
	for _, def := range f.Playbooks {
		if strings.TrimSpace(def.Tenant) == "" {
			return nil, fmt.Errorf("playbook %q: tenant is required", def.Name)
		}
		if err := Validate(def); err != nil {
			return nil, err
		}
	}
	return f.Playbooks, nil
}

// Match reports whether pb should fire for alert.
func Match(pb *types.Playbook, alert *types.AlertEvent) bool {
	if pb == nil || alert == nil || !pb.Enabled {
		return false
	}
	tr := pb.DecodeTrigger()
	if len(tr.AlertTypes) > 0 {
		ok := false
		for _, t := range tr.AlertTypes {
			if strings.EqualFold(t, alert.AlertType) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !alert.Severity.AtLeast(tr.MinSeverity) {
		return false
	}
	if len(tr.Labels) > 0 {
		labels := alert.LabelMap()
		for k, v := range tr.Labels {
			if labels[k] != v {
				return false
			}
		}
	}
	return true
}

// InCooldown reports whether a previous execution requested at last still
// blocks a new one.
func InCooldown(last *types.PlaybookExecution, cooldownMinutes int, now time.Time) bool {
	if last == nil || cooldownMinutes <= 0 {
		return false
	}
	return now.Sub(last.RequestedAt) < time.Duration(cooldownMinutes)*time.Minute
}
