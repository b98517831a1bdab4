package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	status, body, err := DoJSON(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, map[string]string{"a": "b"}, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if status != http.StatusOK || string(body) != `{"ok":true}` {
		t.Fatalf("unexpected response: %d %s", status, body)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits: want=3 got=%d", got)
	}
}

func TestDoJSONDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	status, _, err := DoJSON(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, nil, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})
	if err == nil {
		t.Fatalf("expected error")
	}
	if status != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", status)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("hits: want=1 got=%d", got)
	}
}
