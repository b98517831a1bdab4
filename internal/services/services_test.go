package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type recordedEvent struct {
	kind     string
	tenantID uuid.UUID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) add(kind string, tenantID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{kind: kind, tenantID: tenantID})
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.kind == kind {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) AlertCreated(_ context.Context, tenantID uuid.UUID, _ any) {
	n.add("alert_created", tenantID)
}
func (n *recordingNotifier) AlertUpdated(_ context.Context, tenantID uuid.UUID, _ any) {
	n.add("alert_updated", tenantID)
}
func (n *recordingNotifier) CorrelationUpdated(_ context.Context, tenantID uuid.UUID, _ any) {
	n.add("correlation_updated", tenantID)
}
func (n *recordingNotifier) IncidentUpdated(_ context.Context, tenantID, _ uuid.UUID, _ any) {
	n.add("incident_updated", tenantID)
}
func (n *recordingNotifier) PlaybookExecution(_ context.Context, tenantID uuid.UUID, _ any) {
	n.add("playbook_execution", tenantID)
}
func (n *recordingNotifier) MetricsSnapshot(_ context.Context, tenantID uuid.UUID, _ any) {
	n.add("metrics_snapshot", tenantID)
}
func (n *recordingNotifier) Broadcast(_ context.Context, tenantID uuid.UUID, _ string, _ any) {
	n.add("broadcast", tenantID)
}

type fixture struct {
	db  *gorm.DB
	log *logger.Logger
	ctx context.Context
	dbc dbctx.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	return fixture{
		db:  testutil.DB(t),
		log: testutil.Logger(t),
		ctx: ctx,
		dbc: dbctx.Context{Ctx: ctx},
	}
}

func (f fixture) tenant(t *testing.T) uuid.UUID {
	t.Helper()
	return testutil.SeedTenant(t, f.ctx, f.db, "acme").ID
}

func (f fixture) alertService(notify NOCNotifier) AlertService {
	return NewAlertService(f.db, f.log, NOCConfig{}, repos.NewAlertRepo(f.db, f.log), nil, nil, nil, notify, nil)
}
