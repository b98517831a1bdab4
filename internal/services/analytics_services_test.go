package services

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/analytics"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
)

func (f fixture) heatmapService() HeatmapService {
	return NewHeatmapService(f.log, repos.NewHeatmapRepo(f.db, f.log))
}

func (f fixture) recommendationService() RecommendationService {
	return NewRecommendationService(f.db, f.log,
		repos.NewBehaviorProfileRepo(f.db, f.log),
		repos.NewNavigationTransitionRepo(f.db, f.log),
		repos.NewRecommendationRepo(f.db, f.log),
		f.heatmapService(),
	)
}

func TestHeatmapRecordAndAggregate(t *testing.T) {
	f := newFixture(t)
	svc := f.heatmapService()
	tenant := f.tenant(t)

	clicks := []ClickInput{
		{Path: "/alerts", XRatio: 0.10, YRatio: 0.10, ViewportWidth: 1440, Selector: "#ack"},
		{Path: "/alerts", XRatio: 0.11, YRatio: 0.12, ViewportWidth: 1440, Selector: "#ack"},
		{Path: "/alerts", XRatio: 0.90, YRatio: 0.50, ViewportWidth: 400, Selector: "#menu"},
	}
	n, err := svc.RecordClicks(f.dbc, tenant, nil, clicks)
	if err != nil || n != 3 {
		t.Fatalf("RecordClicks: n=%d err=%v", n, err)
	}

	all, err := svc.Aggregate(f.dbc, tenant, HeatmapRequest{Path: "/alerts", Width: 10, Height: 10})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if all.Total != 3 || all.Width != 10 {
		t.Fatalf("aggregate: total=%d width=%d", all.Total, all.Width)
	}
	var peak int64
	for _, c := range all.Cells {
		if c.Count > peak {
			peak = c.Count
		}
	}
	if peak != 2 {
		t.Fatalf("peak cell: want=2 got=%d", peak)
	}
	if len(all.TopSelectors) == 0 || all.TopSelectors[0].Selector != "#ack" || all.TopSelectors[0].Count != 2 {
		t.Fatalf("top selectors: got=%+v", all.TopSelectors)
	}

	mobile, err := svc.Aggregate(f.dbc, tenant, HeatmapRequest{Path: "/alerts", Device: analytics.DeviceMobile})
	if err != nil || mobile.Total != 1 {
		t.Fatalf("mobile: result=%+v err=%v", mobile, err)
	}
	if other, err := svc.Aggregate(f.dbc, f.tenant(t), HeatmapRequest{Path: "/alerts"}); err != nil || other.Total != 0 {
		t.Fatalf("other tenant: result=%+v err=%v", other, err)
	}
}

func TestHeatmapRejectsBadClicks(t *testing.T) {
	f := newFixture(t)
	svc := f.heatmapService()
	tenant := f.tenant(t)

	_, err := svc.RecordClicks(f.dbc, tenant, nil, []ClickInput{{Path: "/x", XRatio: 1.5}})
	if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "invalid_click" {
		t.Fatalf("out of range: want=400/invalid_click got=%d/%s", status, code)
	}
	_, err = svc.RecordClicks(f.dbc, tenant, nil, make([]ClickInput, maxClicksPerBatch+1))
	if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "batch_too_large" {
		t.Fatalf("batch: want=400/batch_too_large got=%d/%s", status, code)
	}
	_, err = svc.Aggregate(f.dbc, tenant, HeatmapRequest{Path: "/x", Device: "watch"})
	if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "invalid_device" {
		t.Fatalf("device: want=400/invalid_device got=%d/%s", status, code)
	}
}

func TestRecommendContent(t *testing.T) {
	f := newFixture(t)
	svc := f.recommendationService()
	tenant := f.tenant(t)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	track := func(user uuid.UUID, kind, content string) {
		t.Helper()
		if err := svc.TrackEvent(f.dbc, tenant, user, types.BehaviorEvent{Kind: kind, ContentID: content}); err != nil {
			t.Fatalf("TrackEvent %s %s: %v", kind, content, err)
		}
	}
	track(alice, analytics.EventContentLike, "runbook-bgp")
	track(alice, analytics.EventContentLike, "runbook-ospf")
	track(bob, analytics.EventContentView, "runbook-bgp")
	track(bob, analytics.EventContentView, "runbook-dns")

	got, reason, err := svc.RecommendContent(f.dbc, tenant, bob, 5)
	if err != nil {
		t.Fatalf("RecommendContent: %v", err)
	}
	if reason != analytics.ReasonSimilarUsers || len(got) == 0 || got[0].Key != "runbook-ospf" {
		t.Fatalf("bob: reason=%s got=%+v", reason, got)
	}

	cold, reason, err := svc.RecommendContent(f.dbc, tenant, carol, 5)
	if err != nil {
		t.Fatalf("RecommendContent cold: %v", err)
	}
	if reason != analytics.ReasonPopular || len(cold) == 0 || cold[0].Key != "runbook-bgp" {
		t.Fatalf("carol: reason=%s got=%+v", reason, cold)
	}

	if err := svc.TrackEvent(f.dbc, tenant, bob, types.BehaviorEvent{Kind: analytics.EventContentView}); err == nil {
		t.Fatalf("missing content_id: want error got=nil")
	}
	if err := svc.TrackEvent(f.dbc, tenant, bob, types.BehaviorEvent{Kind: "scroll", Path: "/"}); err == nil {
		t.Fatalf("unknown kind: want error got=nil")
	}
}

func TestConcurrentFirstEventsShareOneProfile(t *testing.T) {
	f := newFixture(t)
	svc := f.recommendationService()
	tenant := f.tenant(t)
	user := uuid.New()

	const writers = 4
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.TrackEvent(f.dbc, tenant, user, types.BehaviorEvent{Kind: analytics.EventContentView, ContentID: "runbook-bgp"})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	profiles, err := repos.NewBehaviorProfileRepo(f.db, f.log).ListByTenant(f.dbc, tenant, nil)
	if err != nil || len(profiles) != 1 {
		t.Fatalf("profiles: want=1 got=%d err=%v", len(profiles), err)
	}
	if got := profiles[0].ContentWeightMap()["runbook-bgp"]; got != writers*analytics.WeightView {
		t.Fatalf("weight: want=%v got=%v", writers*analytics.WeightView, got)
	}
}

func TestRecommendNavigationFromSessionTransitions(t *testing.T) {
	f := newFixture(t)
	svc := f.recommendationService()
	tenant := f.tenant(t)
	user := uuid.New()

	for _, path := range []string{"/alerts", "/incidents", "/alerts", "/playbooks", "/alerts", "/incidents"} {
		ev := types.BehaviorEvent{Kind: analytics.EventPageView, SessionID: "s1", Path: path}
		if err := svc.TrackEvent(f.dbc, tenant, user, ev); err != nil {
			t.Fatalf("TrackEvent %s: %v", path, err)
		}
	}
	got, err := svc.RecommendNavigation(f.dbc, tenant, user, "/alerts", 5)
	if err != nil {
		t.Fatalf("RecommendNavigation: %v", err)
	}
	if len(got) != 2 || got[0].Key != "/incidents" {
		t.Fatalf("navigation: want /incidents first of 2 got=%+v", got)
	}
	for _, s := range got {
		if s.Key == "/alerts" {
			t.Fatalf("navigation: from path must not be suggested")
		}
	}
	if _, err := svc.RecommendNavigation(f.dbc, tenant, user, " ", 5); err == nil {
		t.Fatalf("blank from: want error got=nil")
	}

	refreshed, err := svc.Refresh(f.dbc, tenant)
	if err != nil || refreshed != 1 {
		t.Fatalf("Refresh: n=%d err=%v", refreshed, err)
	}
	stored, err := svc.GetNavigation(f.dbc, tenant, user, "/incidents", 5)
	if err != nil || len(stored) == 0 {
		t.Fatalf("GetNavigation: n=%d err=%v", len(stored), err)
	}
}
