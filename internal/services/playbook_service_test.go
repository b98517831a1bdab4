package services

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	types "github.com/yungbote/noc-backend/internal/domain"
	jobtypes "github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/playbook"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
)

func (f fixture) playbookService(notify NOCNotifier) PlaybookService {
	svc, _ := f.playbookServiceWithJobs(notify)
	return svc
}

func (f fixture) playbookServiceWithJobs(notify NOCNotifier) (PlaybookService, JobService) {
	jobs := NewJobService(f.db, f.log, repos.NewJobRunRepo(f.db, f.log), nil, nil, "")
	return NewPlaybookService(f.db, f.log, PlaybookDeps{
		Playbooks:  repos.NewPlaybookRepo(f.db, f.log),
		Executions: repos.NewPlaybookExecutionRepo(f.db, f.log),
		Alerts:     repos.NewAlertRepo(f.db, f.log),
		Tenants:    repos.NewTenantRepo(f.db, f.log),
		Incidents:  f.incidentService(notify),
		Jobs:       jobs,
		Notify:     notify,
	}), jobs
}

func offlineDef(name string, steps ...noc.PlaybookStep) playbook.Definition {
	if len(steps) == 0 {
		steps = []noc.PlaybookStep{{Name: "page", Action: noc.ActionNotify}}
	}
	return playbook.Definition{
		Name:            name,
		Trigger:         noc.PlaybookTrigger{AlertTypes: []string{"device_offline"}, MinSeverity: noc.SeverityHigh},
		Steps:           steps,
		CooldownMinutes: 10,
	}
}

func TestPlaybookCreateValidates(t *testing.T) {
	f := newFixture(t)
	svc := f.playbookService(nil)
	tenant := f.tenant(t)

	if _, err := svc.Create(f.dbc, tenant, offlineDef("reboot")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(f.dbc, tenant, offlineDef("reboot"))
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "playbook_exists" {
		t.Fatalf("duplicate: want=409/playbook_exists got=%d/%s", status, code)
	}

	bad := []playbook.Definition{
		{Name: "no-steps"},
		offlineDef("bad-action", noc.PlaybookStep{Name: "x", Action: "launch_rockets"}),
		offlineDef("dup-steps", noc.PlaybookStep{Name: "x", Action: noc.ActionNotify}, noc.PlaybookStep{Name: "x", Action: noc.ActionAnnotate}),
	}
	for _, def := range bad {
		_, err := svc.Create(f.dbc, tenant, def)
		if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "invalid_playbook" {
			t.Fatalf("%s: want=400/invalid_playbook got=%d/%s", def.Name, status, code)
		}
	}
}

func TestPlaybookTriggerMatchesAndCoolsDown(t *testing.T) {
	f := newFixture(t)
	notify := &recordingNotifier{}
	svc := f.playbookService(notify)
	tenant := f.tenant(t)
	if _, err := svc.Create(f.dbc, tenant, offlineDef("reboot")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	alert := testutil.SeedAlert(t, f.ctx, f.db, tenant, nil)
	execs, err := svc.Trigger(f.dbc, alert)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions: want=1 got=%d", len(execs))
	}
	if execs[0].Status != noc.ExecutionQueued || execs[0].JobID == nil {
		t.Fatalf("execution: status=%v job=%v", execs[0].Status, execs[0].JobID)
	}

	again, err := svc.Trigger(f.dbc, alert)
	if err != nil {
		t.Fatalf("Trigger again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("cooldown: want=0 executions got=%d", len(again))
	}

	low := testutil.SeedAlert(t, f.ctx, f.db, tenant, func(a *types.AlertEvent) { a.Severity = noc.SeverityLow })
	if got, _ := svc.Trigger(f.dbc, low); len(got) != 0 {
		t.Fatalf("below min severity: want=0 got=%d", len(got))
	}
	other := testutil.SeedAlert(t, f.ctx, f.db, tenant, func(a *types.AlertEvent) { a.AlertType = "cpu_high" })
	if got, _ := svc.Trigger(f.dbc, other); len(got) != 0 {
		t.Fatalf("other type: want=0 got=%d", len(got))
	}
	if got := notify.count("playbook_execution"); got != 1 {
		t.Fatalf("execution events: want=1 got=%d", got)
	}
}

func TestPlaybookApprovalFlow(t *testing.T) {
	f := newFixture(t)
	svc := f.playbookService(nil)
	tenant := f.tenant(t)
	approver := uuid.New()

	def := offlineDef("gated")
	def.RequiresApproval = true
	if _, err := svc.Create(f.dbc, tenant, def); err != nil {
		t.Fatalf("Create: %v", err)
	}
	execs, err := svc.Trigger(f.dbc, testutil.SeedAlert(t, f.ctx, f.db, tenant, nil))
	if err != nil || len(execs) != 1 {
		t.Fatalf("Trigger: n=%d err=%v", len(execs), err)
	}
	if execs[0].Status != noc.ExecutionPendingApproval || execs[0].JobID != nil {
		t.Fatalf("pending: status=%v job=%v", execs[0].Status, execs[0].JobID)
	}

	approved, err := svc.Approve(f.dbc, tenant, execs[0].ID, approver)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != noc.ExecutionQueued || approved.JobID == nil {
		t.Fatalf("approved: status=%v job=%v", approved.Status, approved.JobID)
	}
	_, err = svc.Reject(f.dbc, tenant, execs[0].ID, approver)
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "not_pending" {
		t.Fatalf("reject after approve: want=409/not_pending got=%d/%s", status, code)
	}
	_, err = svc.Approve(f.dbc, f.tenant(t), execs[0].ID, approver)
	if status, _ := apierr.StatusOf(err); status != http.StatusNotFound {
		t.Fatalf("cross-tenant approve: want=404 got=%d", status)
	}
}

func TestPlaybookExecuteStopsAtFailedStep(t *testing.T) {
	f := newFixture(t)
	svc := f.playbookService(&recordingNotifier{})
	tenant := f.tenant(t)

	def := offlineDef("triage",
		noc.PlaybookStep{Name: "ack", Action: noc.ActionAcknowledgeAlert},
		noc.PlaybookStep{Name: "bump", Action: noc.ActionEscalatePriority},
		noc.PlaybookStep{Name: "mail", Action: noc.ActionEmail, Params: map[string]any{"to": []any{"oncall@example.com"}}},
		noc.PlaybookStep{Name: "note", Action: noc.ActionAnnotate},
	)
	if _, err := svc.Create(f.dbc, tenant, def); err != nil {
		t.Fatalf("Create: %v", err)
	}
	alert := testutil.SeedAlert(t, f.ctx, f.db, tenant, nil)
	execs, err := svc.Trigger(f.dbc, alert)
	if err != nil || len(execs) != 1 {
		t.Fatalf("Trigger: n=%d err=%v", len(execs), err)
	}

	done, err := svc.Execute(f.dbc, execs[0].ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if done.Status != noc.ExecutionFailed {
		t.Fatalf("status: want=%v got=%v", noc.ExecutionFailed, done.Status)
	}
	if !strings.Contains(done.Error, `"mail"`) {
		t.Fatalf("error: want mention of mail step got=%q", done.Error)
	}
	if done.FinishedAt == nil {
		t.Fatalf("finished_at: want set got=nil")
	}

	stored, err := repos.NewAlertRepo(f.db, f.log).GetByID(f.dbc, tenant, alert.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload alert: %v", err)
	}
	if stored.Status != noc.AlertStatusAcknowledged {
		t.Fatalf("alert status: want=%v got=%v", noc.AlertStatusAcknowledged, stored.Status)
	}
	if stored.Priority != "P1" || stored.PriorityScore != 100 {
		t.Fatalf("escalation: want=P1/100 got=%s/%v", stored.Priority, stored.PriorityScore)
	}

	rerun, err := svc.Execute(f.dbc, execs[0].ID)
	if err != nil || rerun.Status != noc.ExecutionFailed {
		t.Fatalf("terminal re-run: status=%v err=%v", rerun, err)
	}
}

func TestPlaybookJobCancelCancelsExecution(t *testing.T) {
	f := newFixture(t)
	notify := &recordingNotifier{}
	svc, jobs := f.playbookServiceWithJobs(notify)
	tenant := f.tenant(t)
	if _, err := svc.Create(f.dbc, tenant, offlineDef("reboot")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	execs, err := svc.Trigger(f.dbc, testutil.SeedAlert(t, f.ctx, f.db, tenant, nil))
	if err != nil || len(execs) != 1 || execs[0].JobID == nil {
		t.Fatalf("Trigger: n=%d err=%v", len(execs), err)
	}

	job, err := jobs.CancelForTenant(f.dbc, tenant, *execs[0].JobID)
	if err != nil || job.Status != jobtypes.StatusCanceled {
		t.Fatalf("CancelForTenant: job=%v err=%v", job, err)
	}
	got, err := svc.GetExecution(f.dbc, tenant, execs[0].ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != noc.ExecutionCancelled || got.FinishedAt == nil {
		t.Fatalf("execution: want=%s with finished_at got=%s %v", noc.ExecutionCancelled, got.Status, got.FinishedAt)
	}

	ran, err := svc.Execute(f.dbc, execs[0].ID)
	if err != nil || ran.Status != noc.ExecutionCancelled {
		t.Fatalf("Execute after cancel: status=%v err=%v", ran, err)
	}
	if ran.StartedAt != nil {
		t.Fatalf("started_at: want nil got=%v", ran.StartedAt)
	}
	if got := notify.count("playbook_execution"); got != 2 {
		t.Fatalf("execution events: want=2 got=%d", got)
	}
}

func TestPlaybookCancelPendingAndQueued(t *testing.T) {
	f := newFixture(t)
	svc, jobs := f.playbookServiceWithJobs(nil)
	tenant := f.tenant(t)
	operator := uuid.New()

	gated := offlineDef("gated")
	gated.RequiresApproval = true
	if _, err := svc.Create(f.dbc, tenant, gated); err != nil {
		t.Fatalf("Create gated: %v", err)
	}
	if _, err := svc.Create(f.dbc, tenant, offlineDef("reboot")); err != nil {
		t.Fatalf("Create reboot: %v", err)
	}
	execs, err := svc.Trigger(f.dbc, testutil.SeedAlert(t, f.ctx, f.db, tenant, nil))
	if err != nil || len(execs) != 2 {
		t.Fatalf("Trigger: n=%d err=%v", len(execs), err)
	}
	var pending, queued *types.PlaybookExecution
	for _, e := range execs {
		switch e.Status {
		case noc.ExecutionPendingApproval:
			pending = e
		case noc.ExecutionQueued:
			queued = e
		}
	}
	if pending == nil || queued == nil || queued.JobID == nil {
		t.Fatalf("trigger: want one pending and one queued execution got=%v", execs)
	}

	cancelled, err := svc.Cancel(f.dbc, tenant, pending.ID, operator)
	if err != nil {
		t.Fatalf("Cancel pending: %v", err)
	}
	if cancelled.Status != noc.ExecutionCancelled || cancelled.ApprovedBy == nil || *cancelled.ApprovedBy != operator {
		t.Fatalf("cancelled pending: status=%s by=%v", cancelled.Status, cancelled.ApprovedBy)
	}
	_, err = svc.Approve(f.dbc, tenant, pending.ID, operator)
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "not_pending" {
		t.Fatalf("approve after cancel: want=409/not_pending got=%d/%s", status, code)
	}
	_, err = svc.Cancel(f.dbc, tenant, pending.ID, operator)
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "not_cancellable" {
		t.Fatalf("second cancel: want=409/not_cancellable got=%d/%s", status, code)
	}

	_, err = svc.Cancel(f.dbc, f.tenant(t), queued.ID, operator)
	if status, _ := apierr.StatusOf(err); status != http.StatusNotFound {
		t.Fatalf("cross-tenant cancel: want=404 got=%d", status)
	}
	if got, err := svc.Cancel(f.dbc, tenant, queued.ID, operator); err != nil || got.Status != noc.ExecutionCancelled {
		t.Fatalf("Cancel queued: exec=%v err=%v", got, err)
	}
	job, err := jobs.GetForTenant(f.dbc, tenant, *queued.JobID)
	if err != nil || job.Status != jobtypes.StatusCanceled {
		t.Fatalf("linked job: want=%s got=%v err=%v", jobtypes.StatusCanceled, job, err)
	}
}

func TestEncodeStepResults(t *testing.T) {
	raw, err := encodeStepResults(nil)
	if err != nil || string(raw) != "[]" {
		t.Fatalf("nil results: raw=%s err=%v", raw, err)
	}
	raw, err = encodeStepResults([]noc.StepResult{{Step: "page", Action: noc.ActionNotify, Status: noc.StepStatusSucceeded}})
	if err != nil || !strings.Contains(string(raw), `"step":"page"`) {
		t.Fatalf("results: raw=%s err=%v", raw, err)
	}
	raw, err = encodeStepResults([]noc.StepResult{{Step: "bad", Output: make(chan int)}})
	if err == nil || !strings.Contains(err.Error(), "encode step results") {
		t.Fatalf("unencodable output: want error got=%v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("unencodable output: want [] got=%s", raw)
	}
}
