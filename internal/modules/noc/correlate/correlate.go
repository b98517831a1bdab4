// Package correlate scores how likely an alert shares a root cause with an
// existing correlation group.
package correlate

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

const (
	LabelSite   = "site"
	LabelClient = "client"
)

const (
	scoreSameEntity = 0.5
	scoreSameSite   = 0.3
	scoreSameClient = 0.2
	scoreSameType   = 0.2
	scoreRelated    = 0.3
)

// DefaultRelatedTypes lists alert-type pairs that commonly co-occur for a
// single fault.
var DefaultRelatedTypes = [][2]string{
	{"device_offline", "link_down"},
	{"device_offline", "ping_loss"},
	{"link_down", "interface_errors"},
	{"service_down", "high_latency"},
	{"service_down", "http_5xx"},
	{"high_cpu", "high_latency"},
	{"disk_full", "service_down"},
	{"power_failure", "device_offline"},
}

// Rules answers whether two alert types are related. Pairs are symmetric.
type Rules struct {
	related map[string]map[string]bool
}

func NewRules(pairs [][2]string) *Rules {
	r := &Rules{related: map[string]map[string]bool{}}
	for _, p := range pairs {
		a, b := strings.ToLower(p[0]), strings.ToLower(p[1])
		if r.related[a] == nil {
			r.related[a] = map[string]bool{}
		}
		if r.related[b] == nil {
			r.related[b] = map[string]bool{}
		}
		r.related[a][b] = true
		r.related[b][a] = true
	}
	return r
}

func (r *Rules) Related(a, b string) bool {
	if r == nil {
		return false
	}
	return r.related[strings.ToLower(a)][strings.ToLower(b)]
}

// Signal is the slice of an alert correlation looks at.
type Signal struct {
	EntityKey string
	AlertType string
	Site      string
	Client    string
	At        time.Time
}

func SignalOf(a *types.AlertEvent) Signal {
	labels := a.LabelMap()
	return Signal{
		EntityKey: EntityKey(a),
		AlertType: a.AlertType,
		Site:      labels[LabelSite],
		Client:    labels[LabelClient],
		At:        a.LastSeenAt,
	}
}

// EntityKey is "type:id", or "" when the alert names no entity.
func EntityKey(a *types.AlertEvent) string {
	if a == nil || a.EntityID == "" {
		return ""
	}
	return a.EntityType + ":" + a.EntityID
}

func entityScore(a, b Signal) float64 {
	switch {
	case a.EntityKey != "" && a.EntityKey == b.EntityKey:
		return scoreSameEntity
	case a.Site != "" && a.Site == b.Site:
		return scoreSameSite
	case a.Client != "" && a.Client == b.Client:
		return scoreSameClient
	}
	return 0
}

func typeScore(a, b Signal, rules *Rules) float64 {
	switch {
	case rules.Related(a.AlertType, b.AlertType):
		return scoreRelated
	case strings.EqualFold(a.AlertType, b.AlertType):
		return scoreSameType
	}
	return 0
}

// Pair is the confidence that a and b belong together. Zero once the
// signals are further apart than window.
func Pair(a, b Signal, window time.Duration, rules *Rules) float64 {
	if window <= 0 {
		return 0
	}
	dt := a.At.Sub(b.At)
	if dt < 0 {
		dt = -dt
	}
	if dt > window {
		return 0
	}
	proximity := 1 - float64(dt)/float64(window)
	proximity = math.Max(0, math.Min(1, proximity))
	base := math.Min(1, entityScore(a, b)+typeScore(a, b, rules))
	return base * (0.5 + 0.5*proximity)
}

// Score is the best pairwise confidence between alert and any group member.
func Score(alert Signal, members []Signal, window time.Duration, rules *Rules) float64 {
	best := 0.0
	for _, m := range members {
		if c := Pair(alert, m, window, rules); c > best {
			best = c
		}
	}
	return best
}

type Candidate struct {
	Group   *types.CorrelatedIncident
	Members []Signal
}

type Match struct {
	Group      *types.CorrelatedIncident
	Confidence float64
}

// Best picks the highest-confidence candidate at or above threshold. Ties
// go to the most recently active group.
func Best(alert Signal, candidates []Candidate, window time.Duration, threshold float64, rules *Rules) (Match, bool) {
	var best Match
	found := false
	for _, c := range candidates {
		if c.Group == nil {
			continue
		}
		conf := Score(alert, c.Members, window, rules)
		if conf < threshold || conf <= 0 {
			continue
		}
		if !found || conf > best.Confidence ||
			(conf == best.Confidence && c.Group.LastAlertAt.After(best.Group.LastAlertAt)) {
			best = Match{Group: c.Group, Confidence: conf}
			found = true
		}
	}
	return best, found
}

// PickRoot returns the most severe alert, earliest first seen on ties.
func PickRoot(alerts []*types.AlertEvent) *types.AlertEvent {
	if len(alerts) == 0 {
		return nil
	}
	sorted := append([]*types.AlertEvent(nil), alerts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Severity.Rank(), sorted[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return sorted[i].FirstSeenAt.Before(sorted[j].FirstSeenAt)
	})
	return sorted[0]
}

// GroupTitle names a group after its root alert.
func GroupTitle(root *types.AlertEvent, count int) string {
	if root == nil {
		return "Correlated alerts"
	}
	title := root.Title
	if title == "" {
		title = root.AlertType
	}
	if count > 1 {
		return title + " (+" + strconv.Itoa(count-1) + " related)"
	}
	return title
}

// Stale reports whether a group can be closed: quiet for twice the window
// and no active members left.
func Stale(g *types.CorrelatedIncident, activeMembers int64, now time.Time, window time.Duration) bool {
	if g == nil || g.Status != noc.CorrelationStatusActive {
		return false
	}
	return activeMembers == 0 && now.Sub(g.LastAlertAt) >= 2*window
}
