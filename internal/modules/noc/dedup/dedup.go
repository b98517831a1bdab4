// Package dedup derives alert dedup keys and decides how a repeated alert
// folds into existing state.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	types "github.com/yungbote/noc-backend/internal/domain"
)

type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeDeduplicated Outcome = "deduplicated"
	OutcomeReopened     Outcome = "reopened"
)

type KeyInput struct {
	TenantID    string
	Source      string
	AlertType   string
	EntityType  string
	EntityID    string
	Fingerprint string
	Message     string
}

var (
	digitRun   = regexp.MustCompile(`[0-9]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeMessage lower-cases, replaces digit runs with '#' and collapses
// whitespace so messages differing only in counters share a key.
func NormalizeMessage(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	s = digitRun.ReplaceAllString(s, "#")
	return whitespace.ReplaceAllString(s, " ")
}

// Key is the sha256 hex of the identifying fields. The fingerprint wins
// over the message when present.
func Key(in KeyInput) string {
	discriminator := strings.TrimSpace(in.Fingerprint)
	if discriminator == "" {
		discriminator = NormalizeMessage(in.Message)
	}
	parts := []string{
		in.TenantID,
		in.Source,
		in.AlertType,
		in.EntityType,
		in.EntityID,
		discriminator,
	}
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Decision is what Ingest should do with an incoming alert.
type Decision struct {
	Outcome Outcome
	// Target is the row to update for deduplicated/reopened outcomes.
	Target *types.AlertEvent
	// WindowExpired marks a dedup against an active alert last seen
	// outside the window.
	WindowExpired bool
}

// Decide classifies an incoming alert given the active alert for its key
// (if any) and the most recently resolved one (if any).
func Decide(active, resolved *types.AlertEvent, now time.Time, window time.Duration) Decision {
	if active != nil {
		return Decision{
			Outcome:       OutcomeDeduplicated,
			Target:        active,
			WindowExpired: now.Sub(active.LastSeenAt) > window,
		}
	}
	if resolved != nil && resolved.ResolvedAt != nil && now.Sub(*resolved.ResolvedAt) < window {
		return Decision{Outcome: OutcomeReopened, Target: resolved}
	}
	return Decision{Outcome: OutcomeCreated}
}
