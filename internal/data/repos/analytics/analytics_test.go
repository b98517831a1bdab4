package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos/testutil"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
)

func TestNavigationTransitionRepoIncrement(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewNavigationTransitionRepo(db, testutil.Logger(t))

	tenantID := uuid.New()
	for i := 0; i < 3; i++ {
		if err := repo.Increment(dbc, tenantID, "/alerts", "/incidents"); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if err := repo.Increment(dbc, tenantID, "/alerts", "/metrics"); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	rows, err := repo.ListFrom(dbc, tenantID, "/alerts")
	if err != nil {
		t.Fatalf("ListFrom: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if rows[0].ToPath != "/incidents" || rows[0].Count != 3 {
		t.Fatalf("top transition: want=/incidents x3 got=%s x%d", rows[0].ToPath, rows[0].Count)
	}
}

func TestBehaviorProfileEnsureForUpdate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewBehaviorProfileRepo(db, testutil.Logger(t))
	tenantID, userID := uuid.New(), uuid.New()

	first, err := repo.EnsureForUpdate(dbc, tenantID, userID)
	if err != nil {
		t.Fatalf("EnsureForUpdate: %v", err)
	}
	if first.ID == uuid.Nil || first.UserID != userID {
		t.Fatalf("created profile: %+v", first)
	}
	first.LastPath = "/alerts"
	if err := repo.Save(dbc, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := repo.EnsureForUpdate(dbc, tenantID, userID)
	if err != nil {
		t.Fatalf("EnsureForUpdate existing: %v", err)
	}
	if again.ID != first.ID || again.LastPath != "/alerts" {
		t.Fatalf("existing profile: want id=%v path=/alerts got id=%v path=%q", first.ID, again.ID, again.LastPath)
	}
	all, err := repo.ListByTenant(dbc, tenantID, nil)
	if err != nil || len(all) != 1 {
		t.Fatalf("profiles: want=1 got=%d err=%v", len(all), err)
	}
}

func TestExperimentRepoCounts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	log := testutil.Logger(t)
	assignments := NewExperimentAssignmentRepo(db, log)
	events := NewExperimentEventRepo(db, log)

	tenantID, expID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	variants := []string{"control", "control", "treatment"}
	for i, u := range users {
		if err := assignments.Create(dbc, &types.ExperimentAssignment{
			TenantID: tenantID, ExperimentID: expID, UserID: u, Variant: variants[i], AssignedAt: now,
		}); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	// Two conversions from the same user count once.
	for i := 0; i < 2; i++ {
		if err := events.Create(dbc, &types.ExperimentEvent{
			TenantID: tenantID, ExperimentID: expID, UserID: users[0], Variant: "control", Kind: "conversion", OccurredAt: now,
		}); err != nil {
			t.Fatalf("event: %v", err)
		}
	}

	assigned, err := assignments.CountByVariant(dbc, expID)
	if err != nil {
		t.Fatalf("CountByVariant: %v", err)
	}
	if assigned["control"] != 2 || assigned["treatment"] != 1 {
		t.Fatalf("assigned: want=map[control:2 treatment:1] got=%v", assigned)
	}
	converted, err := events.CountUsersByVariant(dbc, expID, "conversion")
	if err != nil {
		t.Fatalf("CountUsersByVariant: %v", err)
	}
	if converted["control"] != 1 || converted["treatment"] != 0 {
		t.Fatalf("converted: want=map[control:1] got=%v", converted)
	}

	got, err := assignments.Get(dbc, expID, users[2])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Variant != "treatment" {
		t.Fatalf("assignment: want=treatment got=%v", got)
	}
}
