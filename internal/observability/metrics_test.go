package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.AlertIngested("created")
	m.RealtimeClients(1)
	m.JobFinished("metric_rollup", "succeeded", time.Second)
}

func TestMetricsCountersAndExposition(t *testing.T) {
	m := New()
	m.AlertIngested("created")
	m.AlertIngested("created")
	m.AlertIngested("deduplicated")
	m.RealtimeClients(2)
	m.RealtimeClients(-1)

	if got := testutil.ToFloat64(m.alertsIngested.WithLabelValues("created")); got != 2 {
		t.Fatalf("created: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.realtimeClients); got != 1 {
		t.Fatalf("realtime clients: want=1 got=%v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `noc_alerts_ingested_total{outcome="deduplicated"} 1`) {
		t.Fatalf("exposition missing dedup counter:\n%s", rec.Body.String())
	}
}
