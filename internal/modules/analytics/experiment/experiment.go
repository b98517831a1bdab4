// Package experiment does deterministic A/B bucketing and the statistics
// behind experiment results.
package experiment

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/domain/analytics"
)

const Buckets = 10000

func hash64(parts ...string) uint64 {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte(":"))
		}
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Bucket places a user in [0, Buckets) for an experiment key.
func Bucket(key string, userID uuid.UUID) int {
	return int(hash64(key, userID.String()) % Buckets)
}

// Enrolled reports whether bucket falls inside the traffic percentage.
func Enrolled(bucket int, trafficPercent float64) bool {
	return float64(bucket) < trafficPercent*Buckets/100
}

// PickVariant chooses a variant by cumulative weight using a hash
// independent of the enrolment bucket.
func PickVariant(key string, userID uuid.UUID, variants []analytics.Variant) (string, bool) {
	var total float64
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	if total <= 0 {
		return "", false
	}
	point := float64(hash64(key, userID.String(), "variant")%Buckets) / Buckets * total
	var cum float64
	for _, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		cum += v.Weight
		if point < cum {
			return v.Key, true
		}
	}
	return variants[len(variants)-1].Key, true
}

var ErrInvalidVariants = errors.New("invalid variants")

func ValidateVariants(variants []analytics.Variant) error {
	if len(variants) < 2 {
		return fmt.Errorf("%w: at least two variants required", ErrInvalidVariants)
	}
	seen := map[string]bool{}
	for _, v := range variants {
		if v.Key == "" {
			return fmt.Errorf("%w: variant key required", ErrInvalidVariants)
		}
		if seen[v.Key] {
			return fmt.Errorf("%w: duplicate variant %q", ErrInvalidVariants, v.Key)
		}
		seen[v.Key] = true
		if !(v.Weight > 0) {
			return fmt.Errorf("%w: variant %q weight must be positive", ErrInvalidVariants, v.Key)
		}
	}
	return nil
}

type VariantResult struct {
	Variant        string   `json:"variant"`
	Assigned       int64    `json:"assigned"`
	Exposed        int64    `json:"exposed"`
	Converted      int64    `json:"converted"`
	ConversionRate float64  `json:"conversion_rate"`
	Uplift         *float64 `json:"uplift,omitempty"`
	PValue         *float64 `json:"p_value,omitempty"`
}

// Results computes per-variant rates with the first variant as control.
// Conversion rate is converted users over assigned users.
func Results(variants []analytics.Variant, assigned, exposed, converted map[string]int64) []VariantResult {
	out := make([]VariantResult, 0, len(variants))
	for _, v := range variants {
		r := VariantResult{
			Variant:   v.Key,
			Assigned:  assigned[v.Key],
			Exposed:   exposed[v.Key],
			Converted: converted[v.Key],
		}
		if r.Assigned > 0 {
			r.ConversionRate = float64(r.Converted) / float64(r.Assigned)
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return out
	}
	control := out[0]
	for i := 1; i < len(out); i++ {
		if control.ConversionRate > 0 {
			u := (out[i].ConversionRate - control.ConversionRate) / control.ConversionRate
			out[i].Uplift = &u
		}
		p := TwoProportionPValue(control.Converted, control.Assigned, out[i].Converted, out[i].Assigned)
		out[i].PValue = &p
	}
	return out
}

// TwoProportionPValue is the two-sided pooled z-test p-value. Degenerate
// inputs yield 1.
func TwoProportionPValue(x1, n1, x2, n2 int64) float64 {
	if n1 <= 0 || n2 <= 0 {
		return 1
	}
	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	pooled := float64(x1+x2) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 || math.IsNaN(se) {
		return 1
	}
	z := (p2 - p1) / se
	return math.Erfc(math.Abs(z) / math.Sqrt2)
}
