package influx

import (
	"context"
	"fmt"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	types "github.com/yungbote/noc-backend/internal/domain"
)

const Measurement = "noc_rollup"

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Bucket) != ""
}

// RollupWriter exports aggregated buckets to InfluxDB.
type RollupWriter interface {
	WriteRollups(ctx context.Context, tenantSlug string, rows []*types.MetricRollup) error
	Close()
}

type rollupWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewRollupWriter(cfg Config) (RollupWriter, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("influx export not configured")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &rollupWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (w *rollupWriter) WriteRollups(ctx context.Context, tenantSlug string, rows []*types.MetricRollup) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, RollupPoint(tenantSlug, r))
	}
	if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (w *rollupWriter) Close() {
	w.client.Close()
}

// RollupPoint maps one rollup bucket onto a line-protocol point.
func RollupPoint(tenantSlug string, r *types.MetricRollup) *write.Point {
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("tenant", tenantSlug).
		AddTag("metric", r.Metric).
		AddTag("resolution", string(r.Resolution)).
		AddField("avg", r.Avg()).
		AddField("min", r.Min).
		AddField("max", r.Max).
		AddField("sum", r.Sum).
		AddField("count", r.Count).
		SetTime(r.BucketStart)
}
