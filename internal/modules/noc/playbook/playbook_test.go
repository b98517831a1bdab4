package playbook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

func labels(m map[string]string) datatypes.JSON {
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

func TestMatch(t *testing.T) {
	pb := &types.Playbook{Enabled: true}
	pb.SetTrigger(noc.PlaybookTrigger{
		AlertTypes:  []string{"device_offline"},
		MinSeverity: noc.SeverityHigh,
		Labels:      map[string]string{"site": "ams"},
	})

	cases := []struct {
		name  string
		alert *types.AlertEvent
		want  bool
	}{
		{"match", &types.AlertEvent{AlertType: "device_offline", Severity: noc.SeverityCritical, Labels: labels(map[string]string{"site": "ams", "x": "y"})}, true},
		{"wrong type", &types.AlertEvent{AlertType: "link_down", Severity: noc.SeverityCritical, Labels: labels(map[string]string{"site": "ams"})}, false},
		{"too low", &types.AlertEvent{AlertType: "device_offline", Severity: noc.SeverityMedium, Labels: labels(map[string]string{"site": "ams"})}, false},
		{"label mismatch", &types.AlertEvent{AlertType: "device_offline", Severity: noc.SeverityHigh, Labels: labels(map[string]string{"site": "fra"})}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(pb, tc.alert); got != tc.want {
				t.Fatalf("Match: want=%v got=%v", tc.want, got)
			}
		})
	}

	pb.Enabled = false
	if Match(pb, cases[0].alert) {
		t.Fatalf("disabled playbook matched")
	}
}

func TestMatchEmptyTriggerMatchesAny(t *testing.T) {
	pb := &types.Playbook{Enabled: true}
	pb.SetTrigger(noc.PlaybookTrigger{})
	if !Match(pb, &types.AlertEvent{AlertType: "anything", Severity: noc.SeverityInfo}) {
		t.Fatalf("empty trigger should match every alert")
	}
}

func TestValidate(t *testing.T) {
	good := Definition{Name: "page", Steps: []noc.PlaybookStep{{Name: "n", Action: noc.ActionNotify}}}
	if err := Validate(good); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}

	noSteps := Definition{Name: "empty"}
	if err := Validate(noSteps); err == nil {
		t.Fatalf("definition without steps accepted")
	}

	badAction := Definition{Name: "bad", Steps: []noc.PlaybookStep{{Name: "n", Action: "reboot_world"}}}
	if err := Validate(badAction); err == nil {
		t.Fatalf("unknown action accepted")
	}

	dup := Definition{Name: "dup", Steps: []noc.PlaybookStep{
		{Name: "n", Action: noc.ActionNotify},
		{Name: "n", Action: noc.ActionAnnotate},
	}}
	if err := Validate(dup); err == nil {
		t.Fatalf("duplicate step names accepted")
	}
}

func TestMustRegisterPanicsOnBadTag(t *testing.T) {
	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "register validation") {
			t.Fatalf("panic: want registration error got=%v", r)
		}
	}()
	mustRegister(validator.New(), "", func(validator.FieldLevel) bool { return true })
	t.Fatalf("empty tag: want panic")
}

func TestValidatorKnowsPlaybookAction(t *testing.T) {
	step := noc.PlaybookStep{Name: "n", Action: noc.ActionNotify}
	if err := newValidator().Struct(step); err != nil {
		t.Fatalf("known action: %v", err)
	}
	step.Action = "reboot_world"
	err := newValidator().Struct(step)
	if err == nil || !strings.Contains(err.Error(), "playbook_action") {
		t.Fatalf("unknown action: want playbook_action failure got=%v", err)
	}
}

func TestLoadFile(t *testing.T) {
	body := `
playbooks:
  - tenant: acme
    name: offline-page
    trigger:
      alert_types: [device_offline]
      min_severity: high
    steps:
      - name: tell
        action: notify
        params:
          message: "device down"
      - name: ticket
        action: create_incident
    requires_approval: true
    cooldown_minutes: 15
`
	path := filepath.Join(t.TempDir(), "playbooks.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	defs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("definitions: want=1 got=%d", len(defs))
	}
	d := defs[0]
	if d.Tenant != "acme" || len(d.Steps) != 2 || d.Trigger.MinSeverity != noc.SeverityHigh {
		t.Fatalf("parsed definition: got=%+v", d)
	}

	var pb types.Playbook
	Apply(d, &pb)
	if !pb.Enabled || !pb.RequiresApproval || pb.CooldownMinutes != 15 {
		t.Fatalf("applied playbook: got=%+v", pb)
	}
	if steps := pb.DecodeSteps(); len(steps) != 2 || steps[1].Action != noc.ActionCreateIncident {
		t.Fatalf("steps: got=%+v", steps)
	}
}

func TestInCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	last := &types.PlaybookExecution{RequestedAt: now.Add(-10 * time.Minute)}
	if !InCooldown(last, 15, now) {
		t.Fatalf("10m ago with 15m cooldown should block")
	}
	if InCooldown(last, 5, now) {
		t.Fatalf("10m ago with 5m cooldown should not block")
	}
	if InCooldown(nil, 15, now) {
		t.Fatalf("no previous execution should not block")
	}
}
