package timeseries

import (
	"time"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

// EstimatedRowBytes approximates one stored row including index overhead.
const EstimatedRowBytes = 160

type TierSummary struct {
	Resolution       noc.Resolution `json:"resolution"`
	Rows             int64          `json:"rows"`
	Samples          int64          `json:"samples"`
	CompressionRatio float64        `json:"compression_ratio"`
	BytesSaved       int64          `json:"estimated_bytes_saved"`
	Oldest           *time.Time     `json:"oldest,omitempty"`
	Newest           *time.Time     `json:"newest,omitempty"`
}

func Summarize(res noc.Resolution, rows, samples int64, oldest, newest *time.Time) TierSummary {
	out := TierSummary{Resolution: res, Rows: rows, Samples: samples, Oldest: oldest, Newest: newest}
	if rows > 0 {
		out.CompressionRatio = float64(samples) / float64(rows)
	}
	if samples > rows {
		out.BytesSaved = (samples - rows) * EstimatedRowBytes
	}
	return out
}

type Point struct {
	T     time.Time `json:"t"`
	Value float64   `json:"value"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Count int64     `json:"count"`
}

func PointsFromSnapshots(metric string, snaps []*types.MetricSnapshot) []Point {
	out := make([]Point, 0, len(snaps))
	for _, s := range snaps {
		v := s.Values()[metric]
		out = append(out, Point{T: s.CapturedAt.UTC(), Value: v, Min: v, Max: v, Count: 1})
	}
	return out
}

func PointsFromRollups(metric string, kind noc.MetricKind, rows []*types.MetricRollup) []Point {
	out := make([]Point, 0, len(rows))
	for _, r := range rows {
		if r.Metric != metric {
			continue
		}
		a := FromRollup(r)
		out = append(out, Point{T: r.BucketStart.UTC(), Value: a.Value(kind), Min: a.Min, Max: a.Max, Count: a.Count})
	}
	return out
}
