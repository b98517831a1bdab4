package recommend

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestCosine(t *testing.T) {
	a := map[string]float64{"x": 1, "y": 1}
	if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("self similarity: want=1 got=%v", got)
	}
	if got := Cosine(a, map[string]float64{"z": 3}); got != 0 {
		t.Fatalf("disjoint: want=0 got=%v", got)
	}
	if got := Cosine(a, nil); got != 0 {
		t.Fatalf("empty: want=0 got=%v", got)
	}
	got := Cosine(map[string]float64{"x": 1}, map[string]float64{"x": 1, "y": 1})
	if math.Abs(got-1/math.Sqrt2) > 1e-9 {
		t.Fatalf("partial overlap: want=%v got=%v", 1/math.Sqrt2, got)
	}
}

func TestContentScores(t *testing.T) {
	target := Profile{UserID: uuid.New(), Weights: map[string]float64{"a": 1, "b": 3}}
	similar := Profile{UserID: uuid.New(), Weights: map[string]float64{"a": 1, "b": 3, "c": 3}}
	other := Profile{UserID: uuid.New(), Weights: map[string]float64{"a": 1, "d": 1}}
	stranger := Profile{UserID: uuid.New(), Weights: map[string]float64{"z": 5}}

	nbs := Neighbors(target, []Profile{target, similar, other, stranger}, 10)
	if len(nbs) != 2 {
		t.Fatalf("neighbours: want=2 got=%d", len(nbs))
	}
	if nbs[0].UserID != similar.UserID {
		t.Fatalf("closest neighbour: want=%v got=%v", similar.UserID, nbs[0].UserID)
	}

	recs := ContentScores(target.Weights, nbs, 5)
	if len(recs) != 2 {
		t.Fatalf("recommendations: want=2 got=%+v", recs)
	}
	if recs[0].Key != "c" || recs[0].Score != 1 {
		t.Fatalf("top item: want=c/1 got=%+v", recs[0])
	}
	for _, r := range recs {
		if r.Key == "a" || r.Key == "b" {
			t.Fatalf("already-seen item recommended: %s", r.Key)
		}
		if r.Score <= 0 || r.Score > 1 {
			t.Fatalf("score out of range: %+v", r)
		}
	}
}

func TestPopular(t *testing.T) {
	profiles := []Profile{
		{Weights: map[string]float64{"a": 1, "b": 3}},
		{Weights: map[string]float64{"b": 1, "c": 2}},
	}
	got := Popular(profiles, map[string]float64{"c": 1}, 10)
	if len(got) != 2 || got[0].Key != "b" || got[0].Score != 1 || got[1].Score != 0.25 {
		t.Fatalf("popular: got=%+v", got)
	}
}

func TestNavigation(t *testing.T) {
	transitions := map[string]int64{"/incidents": 6, "/metrics": 2, "/alerts": 5}
	views := map[string]float64{"/metrics": 3, "/alerts": 9, "/settings": 1}
	got := Navigation(transitions, views, "/alerts", 3)
	if len(got) != 2 {
		t.Fatalf("candidates: want=2 got=%+v", got)
	}
	// incidents: 0.7*6/8 + 0 = 0.525; metrics: 0.7*2/8 + 0.3*3/4 = 0.4
	if got[0].Key != "/incidents" || math.Abs(got[0].Score-0.525) > 1e-9 {
		t.Fatalf("first: got=%+v", got[0])
	}
	if got[1].Key != "/metrics" || math.Abs(got[1].Score-0.4) > 1e-9 {
		t.Fatalf("second: got=%+v", got[1])
	}
	for _, s := range got {
		if s.Key == "/alerts" {
			t.Fatalf("from path recommended")
		}
	}
}
