package correlate

import (
	"math"
	"testing"
	"time"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPair(t *testing.T) {
	rules := NewRules(DefaultRelatedTypes)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	window := 10 * time.Minute

	cases := []struct {
		name string
		a, b Signal
		want float64
	}{
		{
			name: "same entity same type no gap",
			a:    Signal{EntityKey: "device:r1", AlertType: "link_down", At: now},
			b:    Signal{EntityKey: "device:r1", AlertType: "link_down", At: now},
			want: 0.7,
		},
		{
			name: "same site related pair half window",
			a:    Signal{EntityKey: "device:r1", Site: "ams", AlertType: "device_offline", At: now},
			b:    Signal{EntityKey: "device:r2", Site: "ams", AlertType: "link_down", At: now.Add(-5 * time.Minute)},
			want: 0.6 * 0.75,
		},
		{
			name: "same client only",
			a:    Signal{Client: "acme", AlertType: "a", At: now},
			b:    Signal{Client: "acme", AlertType: "b", At: now},
			want: 0.2,
		},
		{
			name: "outside window",
			a:    Signal{EntityKey: "device:r1", AlertType: "x", At: now},
			b:    Signal{EntityKey: "device:r1", AlertType: "x", At: now.Add(-11 * time.Minute)},
			want: 0,
		},
		{
			name: "unrelated",
			a:    Signal{EntityKey: "device:r1", AlertType: "x", At: now},
			b:    Signal{EntityKey: "device:r9", AlertType: "y", At: now},
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Pair(tc.a, tc.b, window, rules)
			if !approx(got, tc.want) {
				t.Fatalf("confidence: want=%v got=%v", tc.want, got)
			}
		})
	}
}

func TestBestRespectsThreshold(t *testing.T) {
	rules := NewRules(DefaultRelatedTypes)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	window := 15 * time.Minute
	alert := Signal{EntityKey: "device:r1", AlertType: "link_down", At: now}

	weak := &types.CorrelatedIncident{Title: "weak", LastAlertAt: now}
	strong := &types.CorrelatedIncident{Title: "strong", LastAlertAt: now}
	candidates := []Candidate{
		{Group: weak, Members: []Signal{{Client: "c", AlertType: "other", At: now}}},
		{Group: strong, Members: []Signal{{EntityKey: "device:r1", AlertType: "device_offline", At: now}}},
	}

	m, ok := Best(alert, candidates, window, 0.6, rules)
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.Group != strong {
		t.Fatalf("group: want=strong got=%s", m.Group.Title)
	}
	if !approx(m.Confidence, 0.8) {
		t.Fatalf("confidence: want=0.8 got=%v", m.Confidence)
	}

	if _, ok := Best(alert, candidates[:1], window, 0.6, rules); ok {
		t.Fatalf("weak group should not match")
	}
}

func TestPickRoot(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	a := &types.AlertEvent{Title: "a", Severity: noc.SeverityHigh, FirstSeenAt: t0}
	b := &types.AlertEvent{Title: "b", Severity: noc.SeverityCritical, FirstSeenAt: t0.Add(time.Minute)}
	c := &types.AlertEvent{Title: "c", Severity: noc.SeverityCritical, FirstSeenAt: t0.Add(2 * time.Minute)}
	if got := PickRoot([]*types.AlertEvent{a, c, b}); got != b {
		t.Fatalf("root: want=b got=%s", got.Title)
	}
	if got := GroupTitle(b, 3); got != "b (+2 related)" {
		t.Fatalf("title: want=%q got=%q", "b (+2 related)", got)
	}
}

func TestStale(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	g := &types.CorrelatedIncident{Status: noc.CorrelationStatusActive, LastAlertAt: now.Add(-31 * time.Minute)}
	if !Stale(g, 0, now, 15*time.Minute) {
		t.Fatalf("quiet group with no active members should be stale")
	}
	if Stale(g, 1, now, 15*time.Minute) {
		t.Fatalf("group with active members is not stale")
	}
}
