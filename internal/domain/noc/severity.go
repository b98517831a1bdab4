package noc

import "strings"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity accepts the canonical names plus the aliases monitoring
// tools commonly emit ("warning", "error", "page").
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit", "page", "emergency", "fatal":
		return SeverityCritical, true
	case "high", "error", "major":
		return SeverityHigh, true
	case "medium", "warning", "warn", "minor":
		return SeverityMedium, true
	case "low", "notice":
		return SeverityLow, true
	case "info", "informational", "none":
		return SeverityInfo, true
	default:
		return "", false
	}
}

func (s Severity) Rank() int {
	r, ok := severityRank[s]
	if !ok {
		return -1
	}
	return r
}

func (s Severity) Valid() bool { return s.Rank() >= 0 }

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	if min == "" {
		return true
	}
	return s.Rank() >= min.Rank()
}

func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
