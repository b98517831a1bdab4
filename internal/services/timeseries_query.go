package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/timeseries"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const (
	queryCacheSize   = 1024
	queryCacheTTL    = 5 * time.Minute
	defaultQuerySpan = 24 * time.Hour
)

type SeriesQuery struct {
	Metric     string
	Start      time.Time
	End        time.Time
	Resolution string
}

type Series struct {
	Metric     string             `json:"metric"`
	Resolution noc.Resolution     `json:"resolution"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Points     []timeseries.Point `json:"points"`
	Cached     bool               `json:"cached"`
}

type MetricsSummary struct {
	Window   time.Duration         `json:"-"`
	Latest   *types.MetricSnapshot `json:"latest"`
	Previous *types.MetricSnapshot `json:"previous,omitempty"`
	Deltas   map[string]float64    `json:"deltas"`
}

type TimeSeriesQueryService interface {
	Query(dbc dbctx.Context, tenantID uuid.UUID, q SeriesQuery) (*Series, error)
	// Summary compares the latest snapshot with the one in effect window ago.
	Summary(dbc dbctx.Context, tenantID uuid.UUID, window time.Duration) (*MetricsSummary, error)
}

type timeSeriesQueryService struct {
	log       *logger.Logger
	cfg       NOCConfig
	snapshots repos.MetricSnapshotRepo
	rollups   repos.MetricRollupRepo
	cache     *expirable.LRU[string, *Series]
	group     singleflight.Group
	now       func() time.Time
}

func NewTimeSeriesQueryService(baseLog *logger.Logger, cfg NOCConfig, snapshots repos.MetricSnapshotRepo, rollups repos.MetricRollupRepo) TimeSeriesQueryService {
	return &timeSeriesQueryService{
		log:       baseLog.With("service", "TimeSeriesQueryService"),
		cfg:       cfg.WithDefaults(),
		snapshots: snapshots,
		rollups:   rollups,
		cache:     expirable.NewLRU[string, *Series](queryCacheSize, nil, queryCacheTTL),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *timeSeriesQueryService) Query(dbc dbctx.Context, tenantID uuid.UUID, q SeriesQuery) (*Series, error) {
	kind, ok := noc.MetricCatalog[q.Metric]
	if !ok {
		return nil, apierr.Invalid("unknown_metric", "unknown metric %q", q.Metric)
	}
	now := s.now()
	end := q.End.UTC()
	if q.End.IsZero() {
		end = now
	}
	start := q.Start.UTC()
	if q.Start.IsZero() {
		start = end.Add(-defaultQuerySpan)
	}

	var res noc.Resolution
	switch q.Resolution {
	case "", "auto":
		picked, err := timeseries.SelectResolution(start, end, now, s.cfg.Retention)
		if errors.Is(err, timeseries.ErrInvalidRange) {
			return nil, apierr.Invalid("invalid_range", "end must not be before start")
		}
		if err != nil {
			return nil, err
		}
		res = picked
	default:
		parsed, ok := noc.ParseResolution(q.Resolution)
		if !ok {
			return nil, apierr.Invalid("invalid_resolution", "unknown resolution %q", q.Resolution)
		}
		if end.Before(start) {
			return nil, apierr.Invalid("invalid_range", "end must not be before start")
		}
		res = parsed
	}

	key := fmt.Sprintf("%s|%s|%s|%d|%d", tenantID, q.Metric, res, start.UnixNano(), end.UnixNano())
	cacheable := s.cacheable(res, end, now)
	if cacheable {
		if hit, ok := s.cache.Get(key); ok {
			out := *hit
			out.Cached = true
			return &out, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		points, err := s.load(dbc, tenantID, q.Metric, kind, res, start, end)
		if err != nil {
			return nil, err
		}
		series := &Series{Metric: q.Metric, Resolution: res, Start: start, End: end, Points: points}
		if cacheable {
			s.cache.Add(key, series)
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*Series)
	return &out, nil
}

// cacheable is true once the range ends before the newest bucket that can
// still change.
func (s *timeSeriesQueryService) cacheable(res noc.Resolution, end, now time.Time) bool {
	settle := res.Step()
	if settle < time.Minute {
		settle = time.Minute
	}
	return end.Before(now.Add(-settle))
}

func (s *timeSeriesQueryService) load(dbc dbctx.Context, tenantID uuid.UUID, metric string, kind noc.MetricKind, res noc.Resolution, start, end time.Time) ([]timeseries.Point, error) {
	if res == noc.ResolutionRaw {
		snaps, err := s.snapshots.ListRange(dbc, tenantID, start, end)
		if err != nil {
			return nil, err
		}
		return timeseries.PointsFromSnapshots(metric, snaps), nil
	}
	rows, err := s.rollups.ListRange(dbc, tenantID, res, res.BucketStart(start), end, []string{metric})
	if err != nil {
		return nil, err
	}
	return timeseries.PointsFromRollups(metric, kind, rows), nil
}

func (s *timeSeriesQueryService) Summary(dbc dbctx.Context, tenantID uuid.UUID, window time.Duration) (*MetricsSummary, error) {
	if window <= 0 {
		window = time.Hour
	}
	latest, err := s.snapshots.Latest(dbc, tenantID)
	if err != nil {
		return nil, err
	}
	out := &MetricsSummary{Window: window, Latest: latest, Deltas: map[string]float64{}}
	if latest == nil {
		return out, nil
	}
	prev, err := s.snapshots.LatestBefore(dbc, tenantID, latest.CapturedAt.Add(-window))
	if err != nil {
		return nil, err
	}
	out.Previous = prev
	cur := latest.Values()
	var base map[string]float64
	if prev != nil {
		base = prev.Values()
	}
	for _, name := range noc.MetricNames {
		out.Deltas[name] = cur[name] - base[name]
	}
	return out, nil
}
