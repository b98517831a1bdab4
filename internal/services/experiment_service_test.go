package services

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/analytics"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
)

func (f fixture) experimentService() ExperimentService {
	return NewExperimentService(f.db, f.log,
		repos.NewExperimentRepo(f.db, f.log),
		repos.NewExperimentAssignmentRepo(f.db, f.log),
		repos.NewExperimentEventRepo(f.db, f.log),
	)
}

func abVariants() []types.ExperimentVariant {
	return []types.ExperimentVariant{{Key: "control", Weight: 1}, {Key: "treatment", Weight: 1}}
}

func TestExperimentLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := f.experimentService()
	tenant := f.tenant(t)

	e, err := svc.Create(f.dbc, tenant, ExperimentInput{Key: "dense-grid", Variants: abVariants()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Status != analytics.ExperimentDraft || e.Name != "dense-grid" || e.TrafficPercent != 100 {
		t.Fatalf("created: status=%s name=%s traffic=%v", e.Status, e.Name, e.TrafficPercent)
	}
	_, err = svc.Create(f.dbc, tenant, ExperimentInput{Key: "dense-grid", Variants: abVariants()})
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "experiment_exists" {
		t.Fatalf("duplicate: want=409/experiment_exists got=%d/%s", status, code)
	}

	_, err = svc.Assign(f.dbc, tenant, "dense-grid", uuid.New())
	if status, _ := apierr.StatusOf(err); status != http.StatusConflict {
		t.Fatalf("assign draft: want=409 got=%d", status)
	}
	if _, err := svc.Start(f.dbc, tenant, "dense-grid"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Stop(f.dbc, tenant, "dense-grid"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	_, err = svc.Start(f.dbc, tenant, "dense-grid")
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "experiment_stopped" {
		t.Fatalf("restart: want=409/experiment_stopped got=%d/%s", status, code)
	}
	if _, err := svc.List(f.dbc, tenant, "paused"); err == nil {
		t.Fatalf("bad status filter: want error got=nil")
	}
}

func TestExperimentCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	svc := f.experimentService()
	tenant := f.tenant(t)
	over := 120.0

	cases := []struct {
		name string
		in   ExperimentInput
		code string
	}{
		{"no key", ExperimentInput{Variants: abVariants()}, "key_required"},
		{"traffic", ExperimentInput{Key: "a", TrafficPercent: &over, Variants: abVariants()}, "invalid_traffic"},
		{"one variant", ExperimentInput{Key: "b", Variants: abVariants()[:1]}, "invalid_variants"},
		{"zero weight", ExperimentInput{Key: "c", Variants: []types.ExperimentVariant{{Key: "x", Weight: 1}, {Key: "y"}}}, "invalid_variants"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(f.dbc, tenant, tc.in)
			if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != tc.code {
				t.Fatalf("error: want=400/%s got=%d/%s", tc.code, status, code)
			}
		})
	}
}

func TestExperimentAssignIsStickyAndResultsCount(t *testing.T) {
	f := newFixture(t)
	svc := f.experimentService()
	tenant := f.tenant(t)
	if _, err := svc.Create(f.dbc, tenant, ExperimentInput{Key: "cta", Variants: abVariants()}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Start(f.dbc, tenant, "cta"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	users := make([]uuid.UUID, 20)
	for i := range users {
		users[i] = uuid.New()
		a, err := svc.Assign(f.dbc, tenant, "cta", users[i])
		if err != nil || a == nil {
			t.Fatalf("Assign %d: a=%v err=%v", i, a, err)
		}
		again, err := svc.Assign(f.dbc, tenant, "cta", users[i])
		if err != nil || again.Variant != a.Variant {
			t.Fatalf("sticky %d: want=%s got=%v err=%v", i, a.Variant, again, err)
		}
	}
	if _, err := svc.Track(f.dbc, tenant, "cta", users[0], analytics.ExperimentEventConversion, 1); err != nil {
		t.Fatalf("Track: %v", err)
	}
	_, err := svc.Track(f.dbc, tenant, "cta", uuid.New(), analytics.ExperimentEventConversion, 1)
	if status, code := apierr.StatusOf(err); status != http.StatusConflict || code != "not_assigned" {
		t.Fatalf("unassigned track: want=409/not_assigned got=%d/%s", status, code)
	}
	if _, err := svc.Track(f.dbc, tenant, "cta", users[0], "purchase", 1); err == nil {
		t.Fatalf("unknown event kind: want error got=nil")
	}

	res, err := svc.Results(f.dbc, tenant, "cta")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	var assigned, converted int64
	for _, v := range res.Variants {
		assigned += v.Assigned
		converted += v.Converted
	}
	if assigned != 20 || converted != 1 {
		t.Fatalf("totals: want assigned=20 converted=1 got=%d/%d", assigned, converted)
	}
}
