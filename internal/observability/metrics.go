package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

// Metrics is the process-wide Prometheus surface. Every method is safe on
// a nil receiver so callers never branch on METRICS_ENABLED.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	apiInflight     prometheus.Gauge
	alertsIngested  *prometheus.CounterVec
	correlations    *prometheus.CounterVec
	priorityScored  *prometheus.CounterVec
	playbookRuns    *prometheus.CounterVec
	rollupRows      *prometheus.CounterVec
	rollupDuration  *prometheus.HistogramVec
	cleanupDeleted  *prometheus.CounterVec
	jobsFinished    *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec
	realtimeClients prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the singleton on first call; later calls return it.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

// New builds an independent Metrics on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "noc_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "noc_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		alertsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_alerts_ingested_total",
			Help: "Ingested alerts by dedup outcome.",
		}, []string{"outcome"}),
		correlations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_correlation_decisions_total",
			Help: "Correlation decisions (attached or new_group).",
		}, []string{"decision"}),
		priorityScored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_priority_scored_total",
			Help: "Priority scores by source (model or heuristic).",
		}, []string{"source"}),
		playbookRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_playbook_executions_total",
			Help: "Playbook executions by final status.",
		}, []string{"status"}),
		rollupRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_rollup_rows_total",
			Help: "Rollup rows upserted by resolution.",
		}, []string{"resolution"}),
		rollupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "noc_rollup_duration_seconds",
			Help:    "Wall time of one rollup pass.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"resolution"}),
		cleanupDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_cleanup_deleted_rows_total",
			Help: "Rows removed by retention cleanup.",
		}, []string{"resolution"}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "noc_jobs_finished_total",
			Help: "Job runs by type and terminal status.",
		}, []string{"job_type", "status"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "noc_job_duration_seconds",
			Help:    "Job handler run time.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"job_type"}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "noc_job_queue_depth",
			Help: "Job runs by status.",
		}, []string{"status"}),
		realtimeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "noc_realtime_clients",
			Help: "Connected SSE and WebSocket clients.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) AlertIngested(outcome string) {
	if m == nil {
		return
	}
	m.alertsIngested.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CorrelationDecision(decision string) {
	if m == nil {
		return
	}
	m.correlations.WithLabelValues(decision).Inc()
}

func (m *Metrics) PriorityScored(source string) {
	if m == nil {
		return
	}
	m.priorityScored.WithLabelValues(source).Inc()
}

func (m *Metrics) PlaybookRun(status string) {
	if m == nil {
		return
	}
	m.playbookRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) RollupObserved(resolution string, rows int, dur time.Duration) {
	if m == nil {
		return
	}
	m.rollupRows.WithLabelValues(resolution).Add(float64(rows))
	m.rollupDuration.WithLabelValues(resolution).Observe(dur.Seconds())
}

func (m *Metrics) CleanupDeleted(resolution string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupDeleted.WithLabelValues(resolution).Add(float64(n))
}

func (m *Metrics) JobFinished(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(jobType, status).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(dur.Seconds())
}

func (m *Metrics) RealtimeClients(delta int) {
	if m == nil {
		return
	}
	m.realtimeClients.Add(float64(delta))
}

// StartJobQueueCollector polls count fn every interval into the queue depth gauge.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, interval time.Duration, count func(ctx context.Context) (map[string]int64, error)) {
	if m == nil || count == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	statuses := []string{"queued", "running", "succeeded", "failed", "canceled"}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rows, err := count(ctx)
				if err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, s := range statuses {
					m.queueDepth.WithLabelValues(s).Set(0)
				}
				for status, n := range rows {
					status = strings.TrimSpace(status)
					if status == "" {
						status = "unknown"
					}
					m.queueDepth.WithLabelValues(status).Set(float64(n))
				}
			}
		}
	}()
}
