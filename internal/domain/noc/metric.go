package noc

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resolution names a storage tier for metric data.
type Resolution string

const (
	ResolutionRaw Resolution = "raw"
	Resolution5m  Resolution = "5m"
	Resolution1h  Resolution = "1h"
	Resolution1d  Resolution = "1d"
)

// Resolutions lists tiers finest first.
var Resolutions = []Resolution{ResolutionRaw, Resolution5m, Resolution1h, Resolution1d}

func ParseResolution(s string) (Resolution, bool) {
	for _, r := range Resolutions {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Step is the bucket width; raw has none.
func (r Resolution) Step() time.Duration {
	switch r {
	case Resolution5m:
		return 5 * time.Minute
	case Resolution1h:
		return time.Hour
	case Resolution1d:
		return 24 * time.Hour
	}
	return 0
}

// Source is the tier a rollup at r is computed from.
func (r Resolution) Source() Resolution {
	switch r {
	case Resolution5m:
		return ResolutionRaw
	case Resolution1h:
		return Resolution5m
	case Resolution1d:
		return Resolution1h
	}
	return ""
}

// Coarser returns the next tier up; 1d is terminal.
func (r Resolution) Coarser() Resolution {
	switch r {
	case ResolutionRaw:
		return Resolution5m
	case Resolution5m:
		return Resolution1h
	}
	return Resolution1d
}

// BucketStart truncates t to r's bucket in UTC.
func (r Resolution) BucketStart(t time.Time) time.Time {
	step := r.Step()
	if step == 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(step)
}

type MetricKind string

const (
	MetricGauge   MetricKind = "gauge"
	MetricCounter MetricKind = "counter"
)

const (
	MetricAlertsOpen         = "alerts_open"
	MetricAlertsCriticalOpen = "alerts_critical_open"
	MetricAlertsNew          = "alerts_new"
	MetricAlertsSuppressed   = "alerts_suppressed"
	MetricIncidentsOpen      = "incidents_open"
	MetricIncidentsResolved  = "incidents_resolved"
	MetricMTTASeconds        = "mtta_seconds"
	MetricMTTRSeconds        = "mttr_seconds"
	MetricPlaybookRuns       = "playbook_runs"
	MetricPriorityScoreAvg   = "priority_score_avg"
)

// MetricCatalog maps every snapshot metric to its aggregation kind.
var MetricCatalog = map[string]MetricKind{
	MetricAlertsOpen:         MetricGauge,
	MetricAlertsCriticalOpen: MetricGauge,
	MetricAlertsNew:          MetricCounter,
	MetricAlertsSuppressed:   MetricCounter,
	MetricIncidentsOpen:      MetricGauge,
	MetricIncidentsResolved:  MetricCounter,
	MetricMTTASeconds:        MetricGauge,
	MetricMTTRSeconds:        MetricGauge,
	MetricPlaybookRuns:       MetricCounter,
	MetricPriorityScoreAvg:   MetricGauge,
}

// MetricNames is the catalogue in stable order.
var MetricNames = []string{
	MetricAlertsOpen, MetricAlertsCriticalOpen, MetricAlertsNew, MetricAlertsSuppressed,
	MetricIncidentsOpen, MetricIncidentsResolved, MetricMTTASeconds, MetricMTTRSeconds,
	MetricPlaybookRuns, MetricPriorityScoreAvg,
}

// MetricSnapshot is a raw sample of the tenant's NOC state.
type MetricSnapshot struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;index:idx_snapshot_tenant_time,priority:1" json:"tenant_id"`
	CapturedAt         time.Time `gorm:"column:captured_at;not null;index:idx_snapshot_tenant_time,priority:2;index" json:"captured_at"`
	AlertsOpen         float64   `gorm:"column:alerts_open;not null;default:0" json:"alerts_open"`
	AlertsCriticalOpen float64   `gorm:"column:alerts_critical_open;not null;default:0" json:"alerts_critical_open"`
	AlertsNew          float64   `gorm:"column:alerts_new;not null;default:0" json:"alerts_new"`
	AlertsSuppressed   float64   `gorm:"column:alerts_suppressed;not null;default:0" json:"alerts_suppressed"`
	IncidentsOpen      float64   `gorm:"column:incidents_open;not null;default:0" json:"incidents_open"`
	IncidentsResolved  float64   `gorm:"column:incidents_resolved;not null;default:0" json:"incidents_resolved"`
	MTTASeconds        float64   `gorm:"column:mtta_seconds;not null;default:0" json:"mtta_seconds"`
	MTTRSeconds        float64   `gorm:"column:mttr_seconds;not null;default:0" json:"mttr_seconds"`
	PlaybookRuns       float64   `gorm:"column:playbook_runs;not null;default:0" json:"playbook_runs"`
	PriorityScoreAvg   float64   `gorm:"column:priority_score_avg;not null;default:0" json:"priority_score_avg"`
	SuppressedTotal    int64     `gorm:"column:suppressed_total;not null;default:0" json:"-"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
}

func (MetricSnapshot) TableName() string { return "noc_metric_snapshot" }

func (s *MetricSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Values flattens the snapshot into catalogue metric names.
func (s *MetricSnapshot) Values() map[string]float64 {
	return map[string]float64{
		MetricAlertsOpen:         s.AlertsOpen,
		MetricAlertsCriticalOpen: s.AlertsCriticalOpen,
		MetricAlertsNew:          s.AlertsNew,
		MetricAlertsSuppressed:   s.AlertsSuppressed,
		MetricIncidentsOpen:      s.IncidentsOpen,
		MetricIncidentsResolved:  s.IncidentsResolved,
		MetricMTTASeconds:        s.MTTASeconds,
		MetricMTTRSeconds:        s.MTTRSeconds,
		MetricPlaybookRuns:       s.PlaybookRuns,
		MetricPriorityScoreAvg:   s.PriorityScoreAvg,
	}
}

// MetricRollup is one aggregated bucket for one metric at one resolution.
type MetricRollup struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_rollup_key,priority:1" json:"tenant_id"`
	Resolution  Resolution `gorm:"column:resolution;not null;uniqueIndex:idx_rollup_key,priority:2;index" json:"resolution"`
	BucketStart time.Time  `gorm:"column:bucket_start;not null;uniqueIndex:idx_rollup_key,priority:3;index" json:"bucket_start"`
	Metric      string     `gorm:"column:metric;not null;uniqueIndex:idx_rollup_key,priority:4" json:"metric"`
	Count       int64      `gorm:"column:count;not null;default:0" json:"count"`
	Sum         float64    `gorm:"column:sum;not null;default:0" json:"sum"`
	Min         float64    `gorm:"column:min;not null;default:0" json:"min"`
	Max         float64    `gorm:"column:max;not null;default:0" json:"max"`
	Last        float64    `gorm:"column:last;not null;default:0" json:"last"`
	LastAt      time.Time  `gorm:"column:last_at;not null" json:"last_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (MetricRollup) TableName() string { return "noc_metric_rollup" }

func (r *MetricRollup) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Avg is Sum/Count, zero for empty buckets.
func (r *MetricRollup) Avg() float64 {
	if r == nil || r.Count == 0 {
		return 0
	}
	return r.Sum / float64(r.Count)
}

type RollupWatermark struct {
	TenantID    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	Resolution  Resolution `gorm:"column:resolution;primaryKey" json:"resolution"`
	RolledUntil time.Time  `gorm:"column:rolled_until;not null" json:"rolled_until"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (RollupWatermark) TableName() string { return "noc_rollup_watermark" }
