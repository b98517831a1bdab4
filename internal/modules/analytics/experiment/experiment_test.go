package experiment

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/domain/analytics"
)

func TestBucketIsStableAndInRange(t *testing.T) {
	u := uuid.MustParse("8d6b1c62-8c1e-4f7e-9d43-1c1f1d3b8a10")
	b := Bucket("checkout", u)
	if b < 0 || b >= Buckets {
		t.Fatalf("bucket out of range: %d", b)
	}
	if again := Bucket("checkout", u); again != b {
		t.Fatalf("bucket not stable: %d vs %d", b, again)
	}
	if !Enrolled(b, 100) {
		t.Fatalf("100%% traffic must enrol everyone")
	}
	if Enrolled(b, 0) {
		t.Fatalf("0%% traffic must enrol nobody")
	}
}

func TestPickVariantFollowsWeights(t *testing.T) {
	variants := []analytics.Variant{{Key: "a", Weight: 1}, {Key: "b", Weight: 3}}
	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		v, ok := PickVariant("exp", uuid.New(), variants)
		if !ok {
			t.Fatalf("no variant picked")
		}
		counts[v]++
	}
	share := float64(counts["b"]) / 4000
	if share < 0.7 || share > 0.8 {
		t.Fatalf("weighted share of b: want~0.75 got=%v", share)
	}

	u := uuid.New()
	first, _ := PickVariant("exp", u, variants)
	for i := 0; i < 5; i++ {
		if v, _ := PickVariant("exp", u, variants); v != first {
			t.Fatalf("variant not sticky")
		}
	}
}

func TestValidateVariants(t *testing.T) {
	cases := []struct {
		name string
		in   []analytics.Variant
		ok   bool
	}{
		{"ok", []analytics.Variant{{Key: "a", Weight: 1}, {Key: "b", Weight: 1}}, true},
		{"single", []analytics.Variant{{Key: "a", Weight: 1}}, false},
		{"duplicate", []analytics.Variant{{Key: "a", Weight: 1}, {Key: "a", Weight: 1}}, false},
		{"zero weight", []analytics.Variant{{Key: "a", Weight: 1}, {Key: "b", Weight: 0}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateVariants(tc.in)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidVariants) {
				t.Fatalf("want ErrInvalidVariants got=%v", err)
			}
		})
	}
}

func TestResults(t *testing.T) {
	variants := []analytics.Variant{{Key: "control", Weight: 1}, {Key: "treatment", Weight: 1}}
	res := Results(variants,
		map[string]int64{"control": 1000, "treatment": 1000},
		map[string]int64{"control": 1000, "treatment": 1000},
		map[string]int64{"control": 100, "treatment": 150},
	)
	if len(res) != 2 {
		t.Fatalf("results: want=2 got=%d", len(res))
	}
	if res[0].Uplift != nil || res[0].PValue != nil {
		t.Fatalf("control should carry no comparison")
	}
	if math.Abs(*res[1].Uplift-0.5) > 1e-9 {
		t.Fatalf("uplift: want=0.5 got=%v", *res[1].Uplift)
	}
	if *res[1].PValue >= 0.01 {
		t.Fatalf("p-value: want<0.01 got=%v", *res[1].PValue)
	}

	if p := TwoProportionPValue(10, 100, 10, 100); math.Abs(p-1) > 1e-9 {
		t.Fatalf("identical rates: want p=1 got=%v", p)
	}
	if p := TwoProportionPValue(0, 0, 1, 10); p != 1 {
		t.Fatalf("empty control: want p=1 got=%v", p)
	}
}
