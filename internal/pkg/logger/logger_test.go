package logger

import "testing"

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_token", "abc",
		"user_id", "8d1c",
		"tenant", "acme",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("len: want=7 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("token: want=[REDACTED] got=%v", out[1])
	}
	hashed, _ := out[3].(string)
	if len(hashed) != len("hash:")+12 {
		t.Fatalf("user_id: unexpected hash %q", hashed)
	}
	if out[5] != "acme" {
		t.Fatalf("tenant: want=acme got=%v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling key should be preserved, got=%v", out[6])
	}
}

func TestSanitizeValueNestedMap(t *testing.T) {
	got := sanitizeValue("labels", map[string]interface{}{"password": "x", "site": "dc1"})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["password"] != "[REDACTED]" || m["site"] != "dc1" {
		t.Fatalf("unexpected nested sanitize: %v", m)
	}
}

func TestNewTestModeIsNop(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("dropped", "k", "v")
	log.With("component", "x").Debug("dropped")
}
