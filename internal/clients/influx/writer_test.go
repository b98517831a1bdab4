package influx

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	types "github.com/yungbote/noc-backend/internal/domain"
)

func TestRollupPointLineProtocol(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := RollupPoint("acme", &types.MetricRollup{
		Resolution:  "1h",
		BucketStart: at,
		Metric:      "alerts_open",
		Count:       4,
		Sum:         10,
		Min:         1,
		Max:         4,
	})
	line := write.PointToLineProtocol(p, time.Second)
	for _, want := range []string{"noc_rollup,", "metric=alerts_open", "resolution=1h", "tenant=acme", "avg=2.5", "count=4i"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line protocol missing %q: %s", want, line)
		}
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatalf("empty config should be disabled")
	}
	if !(Config{URL: "http://influx:8086", Bucket: "noc"}).Enabled() {
		t.Fatalf("url+bucket should enable export")
	}
}
