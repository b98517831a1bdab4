// Package priority scores alerts 0-100 with an optional logistic model and
// a deterministic heuristic fallback.
package priority

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

const (
	FeatureSeverity        = "severity"
	FeatureFrequency       = "frequency"
	FeatureCriticality     = "criticality"
	FeatureCorrelatedCount = "correlated_count"
	FeatureBusinessHours   = "business_hours"
	FeatureUnackedMinutes  = "unacked_minutes"
)

// FeatureNames is the feature set a model must declare weights for.
var FeatureNames = []string{
	FeatureSeverity, FeatureFrequency, FeatureCriticality,
	FeatureCorrelatedCount, FeatureBusinessHours, FeatureUnackedMinutes,
}

var severityWeight = map[noc.Severity]float64{
	noc.SeverityCritical: 40,
	noc.SeverityHigh:     30,
	noc.SeverityMedium:   20,
	noc.SeverityLow:      10,
	noc.SeverityInfo:     5,
}

// Context is what scoring needs beyond the alert row.
type Context struct {
	Now             time.Time
	Criticality     string // high|medium|low
	CorrelatedCount int
	BusinessHours   bool
}

type Features struct {
	Severity        float64
	Frequency       float64
	Criticality     float64
	CorrelatedCount float64
	BusinessHours   float64
	UnackedMinutes  float64
}

func (f Features) Vector() map[string]float64 {
	return map[string]float64{
		FeatureSeverity:        f.Severity,
		FeatureFrequency:       f.Frequency,
		FeatureCriticality:     f.Criticality,
		FeatureCorrelatedCount: f.CorrelatedCount,
		FeatureBusinessHours:   f.BusinessHours,
		FeatureUnackedMinutes:  f.UnackedMinutes,
	}
}

func criticalityValue(level string) float64 {
	switch level {
	case "high":
		return 1
	case "medium":
		return 0.5
	}
	return 0
}

// Extract turns an alert plus context into the scoring features. Severity
// is the heuristic weight so both scorers see the same scale.
func Extract(a *types.AlertEvent, ctx Context) Features {
	f := Features{
		Severity:        severityWeight[a.Severity],
		Frequency:       math.Log2(1 + float64(a.SuppressedCount)),
		Criticality:     criticalityValue(ctx.Criticality),
		CorrelatedCount: float64(ctx.CorrelatedCount),
	}
	if ctx.BusinessHours {
		f.BusinessHours = 1
	}
	if a.AcknowledgedAt == nil && !ctx.Now.IsZero() && !a.FirstSeenAt.IsZero() {
		if mins := ctx.Now.Sub(a.FirstSeenAt).Minutes(); mins > 0 {
			f.UnackedMinutes = mins
		}
	}
	return f
}

// Heuristic is the additive fallback score clamped to [0,100].
func Heuristic(f Features) float64 {
	score := f.Severity
	score += math.Min(20, 5*f.Frequency)
	score += 20 * f.Criticality
	if f.CorrelatedCount > 1 {
		score += math.Min(10, 2*(f.CorrelatedCount-1))
	}
	score += 5 * f.BusinessHours
	if f.UnackedMinutes > 30 {
		score += 5
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Model is a logistic regression over FeatureNames.
type Model struct {
	Version string             `yaml:"version" json:"version"`
	Bias    float64            `yaml:"bias" json:"bias"`
	Weights map[string]float64 `yaml:"weights" json:"weights"`
}

func LoadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read priority model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse priority model: %w", err)
	}
	return &m, nil
}

// Compatible reports whether the model declares exactly FeatureNames.
func (m *Model) Compatible() bool {
	if m == nil || len(m.Weights) != len(FeatureNames) {
		return false
	}
	for _, name := range FeatureNames {
		if _, ok := m.Weights[name]; !ok {
			return false
		}
	}
	return true
}

func (m *Model) Predict(f Features) float64 {
	z := m.Bias
	vec := f.Vector()
	keys := make([]string, 0, len(m.Weights))
	for k := range m.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		z += m.Weights[k] * vec[k]
	}
	return 100 / (1 + math.Exp(-z))
}

type Result struct {
	Score    float64
	Priority string
	Source   string
}

type Scorer struct {
	model *Model
}

// NewScorer drops an incompatible model so every call falls back.
func NewScorer(m *Model) *Scorer {
	if !m.Compatible() {
		m = nil
	}
	return &Scorer{model: m}
}

func (s *Scorer) HasModel() bool { return s != nil && s.model != nil }

func (s *Scorer) Score(f Features) Result {
	if s.HasModel() {
		v := s.model.Predict(f)
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			v = clamp(v)
			return Result{Score: v, Priority: Band(v), Source: noc.PrioritySourceModel}
		}
	}
	v := Heuristic(f)
	return Result{Score: v, Priority: Band(v), Source: noc.PrioritySourceHeuristic}
}

// Band maps a score onto P1..P5.
func Band(score float64) string {
	switch {
	case score >= 80:
		return "P1"
	case score >= 60:
		return "P2"
	case score >= 40:
		return "P3"
	case score >= 20:
		return "P4"
	}
	return "P5"
}
