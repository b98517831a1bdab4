package dedup

import (
	"testing"
	"time"

	types "github.com/yungbote/noc-backend/internal/domain"
)

func TestKeyCollapsesNumericNoise(t *testing.T) {
	base := KeyInput{TenantID: "t1", Source: "zabbix", AlertType: "disk", EntityType: "host", EntityID: "h1"}
	a, b := base, base
	a.Message = "Disk 91% full"
	b.Message = "disk   93% FULL"
	if Key(a) != Key(b) {
		t.Fatalf("keys differ for numeric noise: %s vs %s", Key(a), Key(b))
	}

	c := base
	c.Message = "disk read errors"
	if Key(a) == Key(c) {
		t.Fatalf("distinct messages share a key")
	}
}

func TestKeyPrefersFingerprint(t *testing.T) {
	a := KeyInput{TenantID: "t1", Source: "am", Fingerprint: "abc", Message: "one"}
	b := KeyInput{TenantID: "t1", Source: "am", Fingerprint: "abc", Message: "two"}
	if Key(a) != Key(b) {
		t.Fatalf("same fingerprint should share a key")
	}
	c := KeyInput{TenantID: "t2", Source: "am", Fingerprint: "abc"}
	if Key(a) == Key(c) {
		t.Fatalf("keys must be tenant scoped")
	}
}

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := time.Hour
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)

	cases := []struct {
		name     string
		active   *types.AlertEvent
		resolved *types.AlertEvent
		want     Outcome
		expired  bool
	}{
		{name: "new", want: OutcomeCreated},
		{name: "active in window", active: &types.AlertEvent{LastSeenAt: recent}, want: OutcomeDeduplicated},
		{name: "active outside window", active: &types.AlertEvent{LastSeenAt: old}, want: OutcomeDeduplicated, expired: true},
		{name: "recently resolved", resolved: &types.AlertEvent{ResolvedAt: &recent}, want: OutcomeReopened},
		{name: "resolved long ago", resolved: &types.AlertEvent{ResolvedAt: &old}, want: OutcomeCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.active, tc.resolved, now, window)
			if got.Outcome != tc.want {
				t.Fatalf("outcome: want=%s got=%s", tc.want, got.Outcome)
			}
			if got.WindowExpired != tc.expired {
				t.Fatalf("expired: want=%v got=%v", tc.expired, got.WindowExpired)
			}
		})
	}
}
