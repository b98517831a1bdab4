package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
)

func (f fixture) incidentService(notify NOCNotifier) IncidentService {
	return NewIncidentService(
		f.db, f.log,
		repos.NewIncidentRepo(f.db, f.log),
		repos.NewAlertRepo(f.db, f.log),
		repos.NewCorrelationRepo(f.db, f.log),
		repos.NewUserRepo(f.db, f.log),
		notify,
	)
}

func TestIncidentCreateLinksAlertsAndNumbers(t *testing.T) {
	f := newFixture(t)
	notify := &recordingNotifier{}
	svc := f.incidentService(notify)
	tenant := f.tenant(t)
	alert := testutil.SeedAlert(t, f.ctx, f.db, tenant, nil)

	first, err := svc.Create(f.dbc, tenant, nil, CreateIncidentInput{Title: "core down", Severity: "critical", AlertIDs: []uuid.UUID{alert.ID}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := svc.Create(f.dbc, tenant, nil, CreateIncidentInput{Title: "edge flap"})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	if first.Number != 1 || second.Number != 2 {
		t.Fatalf("numbers: want=1,2 got=%d,%d", first.Number, second.Number)
	}
	if first.Severity != noc.SeverityCritical || second.Severity != noc.SeverityMedium {
		t.Fatalf("severities: got=%v,%v", first.Severity, second.Severity)
	}

	detail, err := svc.Get(f.dbc, tenant, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Alerts) != 1 || detail.Alerts[0].ID != alert.ID {
		t.Fatalf("linked alerts: want=[%v] got=%d", alert.ID, len(detail.Alerts))
	}
	if len(detail.Timeline) != 1 || detail.Timeline[0].Kind != noc.TimelineKindCreated {
		t.Fatalf("timeline: want one created entry got=%d", len(detail.Timeline))
	}
	if got := notify.count("incident_updated"); got != 2 {
		t.Fatalf("incident events: want=2 got=%d", got)
	}

	_, err = svc.Create(f.dbc, tenant, nil, CreateIncidentInput{})
	if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "missing_title" {
		t.Fatalf("untitled: want=400/missing_title got=%d/%s", status, code)
	}
}

func TestIncidentLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := f.incidentService(nil)
	tenant := f.tenant(t)
	actor := uuid.New()

	inc, err := svc.Create(f.dbc, tenant, &actor, CreateIncidentInput{Title: "bgp session down"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	acked, err := svc.Transition(f.dbc, tenant, inc.ID, noc.IncidentStatusAcknowledged, &actor, "")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.AcknowledgedAt == nil {
		t.Fatalf("acknowledged_at: want set got=nil")
	}
	ackAt := *acked.AcknowledgedAt

	if _, err := svc.Transition(f.dbc, tenant, inc.ID, noc.IncidentStatusInvestigating, &actor, "looking"); err != nil {
		t.Fatalf("investigate: %v", err)
	}
	resolved, err := svc.Transition(f.dbc, tenant, inc.ID, noc.IncidentStatusResolved, &actor, "peer restored")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil || resolved.AcknowledgedAt.Sub(ackAt).Abs() > time.Millisecond {
		t.Fatalf("resolved: resolved_at=%v acknowledged_at=%v", resolved.ResolvedAt, resolved.AcknowledgedAt)
	}

	_, err = svc.Transition(f.dbc, tenant, inc.ID, noc.IncidentStatusAcknowledged, &actor, "")
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "invalid_transition" {
		t.Fatalf("resolved->acknowledged: want=409/invalid_transition got=%d/%s", status, code)
	}
	if _, err := svc.Transition(f.dbc, tenant, inc.ID, noc.IncidentStatusClosed, &actor, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = svc.Transition(f.dbc, tenant, inc.ID, noc.IncidentStatusOpen, &actor, "")
	if status, _ := apierr.StatusOf(err); status != http.StatusConflict {
		t.Fatalf("closed->open: want=409 got=%d", status)
	}

	detail, err := svc.Get(f.dbc, tenant, inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Timeline) != 5 {
		t.Fatalf("timeline entries: want=5 got=%d", len(detail.Timeline))
	}
}

func TestIncidentAssignRequiresTenantMember(t *testing.T) {
	f := newFixture(t)
	svc := f.incidentService(nil)
	tenant := f.tenant(t)
	other := f.tenant(t)
	member := testutil.SeedUser(t, f.ctx, f.db, tenant, "")
	outsider := testutil.SeedUser(t, f.ctx, f.db, other, "")

	inc, err := svc.Create(f.dbc, tenant, nil, CreateIncidentInput{Title: "packet loss"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.Assign(f.dbc, tenant, inc.ID, &member.ID, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.AssigneeID == nil || *got.AssigneeID != member.ID {
		t.Fatalf("assignee: want=%v got=%v", member.ID, got.AssigneeID)
	}
	_, err = svc.Assign(f.dbc, tenant, inc.ID, &outsider.ID, nil)
	if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "invalid_assignee" {
		t.Fatalf("outsider: want=400/invalid_assignee got=%d/%s", status, code)
	}
	cleared, err := svc.Assign(f.dbc, tenant, inc.ID, nil, nil)
	if err != nil || cleared.AssigneeID != nil {
		t.Fatalf("unassign: assignee=%v err=%v", cleared, err)
	}
	if _, err := svc.AddNote(f.dbc, tenant, inc.ID, nil, "  "); err == nil {
		t.Fatalf("blank note: want error got=nil")
	}
	if _, err := svc.AddNote(f.dbc, other, inc.ID, nil, "hello"); err == nil {
		t.Fatalf("cross-tenant note: want error got=nil")
	}
}

func TestSummarizeIncidents(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := base.Add(d)
		return &v
	}
	rows := []*types.Incident{
		{OpenedAt: base, AcknowledgedAt: at(2 * time.Minute), ResolvedAt: at(30 * time.Minute)},
		{OpenedAt: base, AcknowledgedAt: at(4 * time.Minute)},
		{OpenedAt: base},
	}
	got := summarizeIncidents(base.Add(-time.Hour), rows)
	if got.Opened != 3 || got.Acknowledged != 2 || got.Resolved != 1 {
		t.Fatalf("counts: got opened=%d acked=%d resolved=%d", got.Opened, got.Acknowledged, got.Resolved)
	}
	if got.MTTASeconds != 180 {
		t.Fatalf("mtta: want=180 got=%v", got.MTTASeconds)
	}
	if got.MTTRSeconds != 1800 {
		t.Fatalf("mttr: want=1800 got=%v", got.MTTRSeconds)
	}
	if empty := summarizeIncidents(base, nil); empty.MTTASeconds != 0 || empty.MTTRSeconds != 0 {
		t.Fatalf("empty means: want=0 got=%v/%v", empty.MTTASeconds, empty.MTTRSeconds)
	}
}
