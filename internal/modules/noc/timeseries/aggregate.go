// Package timeseries holds the bucket math behind metric rollups and
// resolution-routed queries.
package timeseries

import (
	"sort"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

type Sample struct {
	At    time.Time
	Value float64
}

// Agg is a mergeable summary of samples.
type Agg struct {
	Count  int64
	Sum    float64
	Min    float64
	Max    float64
	Last   float64
	LastAt time.Time
}

func (a *Agg) Add(s Sample) {
	if a.Count == 0 {
		a.Min, a.Max = s.Value, s.Value
	} else {
		if s.Value < a.Min {
			a.Min = s.Value
		}
		if s.Value > a.Max {
			a.Max = s.Value
		}
	}
	a.Count++
	a.Sum += s.Value
	if a.Count == 1 || !s.At.Before(a.LastAt) {
		a.Last, a.LastAt = s.Value, s.At
	}
}

// Merge folds b into a. Counts and sums add, min/max fold, last comes from
// whichever side saw the later sample.
func (a *Agg) Merge(b Agg) {
	if b.Count == 0 {
		return
	}
	if a.Count == 0 {
		*a = b
		return
	}
	a.Count += b.Count
	a.Sum += b.Sum
	if b.Min < a.Min {
		a.Min = b.Min
	}
	if b.Max > a.Max {
		a.Max = b.Max
	}
	if !b.LastAt.Before(a.LastAt) {
		a.Last, a.LastAt = b.Last, b.LastAt
	}
}

func (a Agg) Avg() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// Value reads the aggregate the way the metric kind is reported: gauges as
// the bucket average, counters as the bucket sum.
func (a Agg) Value(kind noc.MetricKind) float64 {
	if kind == noc.MetricCounter {
		return a.Sum
	}
	return a.Avg()
}

func Aggregate(samples []Sample) Agg {
	var a Agg
	for _, s := range samples {
		a.Add(s)
	}
	return a
}

func FromRollup(r *types.MetricRollup) Agg {
	return Agg{Count: r.Count, Sum: r.Sum, Min: r.Min, Max: r.Max, Last: r.Last, LastAt: r.LastAt}
}

type bucketKey struct {
	start  time.Time
	metric string
}

func toRows(tenantID uuid.UUID, res noc.Resolution, acc map[bucketKey]*Agg) []*types.MetricRollup {
	out := make([]*types.MetricRollup, 0, len(acc))
	for k, a := range acc {
		out = append(out, &types.MetricRollup{
			TenantID:    tenantID,
			Resolution:  res,
			BucketStart: k.start,
			Metric:      k.metric,
			Count:       a.Count,
			Sum:         a.Sum,
			Min:         a.Min,
			Max:         a.Max,
			Last:        a.Last,
			LastAt:      a.LastAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BucketStart.Equal(out[j].BucketStart) {
			return out[i].BucketStart.Before(out[j].BucketStart)
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}

// RollupSnapshots buckets raw snapshots into res rows, one per metric.
func RollupSnapshots(tenantID uuid.UUID, res noc.Resolution, snaps []*types.MetricSnapshot) []*types.MetricRollup {
	acc := map[bucketKey]*Agg{}
	for _, s := range snaps {
		start := res.BucketStart(s.CapturedAt)
		for metric, v := range s.Values() {
			k := bucketKey{start: start, metric: metric}
			a := acc[k]
			if a == nil {
				a = &Agg{}
				acc[k] = a
			}
			a.Add(Sample{At: s.CapturedAt.UTC(), Value: v})
		}
	}
	return toRows(tenantID, res, acc)
}

// RollupRollups merges finer rows into res buckets.
func RollupRollups(tenantID uuid.UUID, res noc.Resolution, rows []*types.MetricRollup) []*types.MetricRollup {
	acc := map[bucketKey]*Agg{}
	for _, r := range rows {
		k := bucketKey{start: res.BucketStart(r.BucketStart), metric: r.Metric}
		a := acc[k]
		if a == nil {
			a = &Agg{}
			acc[k] = a
		}
		a.Merge(FromRollup(r))
	}
	return toRows(tenantID, res, acc)
}
