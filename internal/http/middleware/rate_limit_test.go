package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
)

func TestTenantRateLimiterNilAllows(t *testing.T) {
	l := NewTenantRateLimiter(0, 0)
	if l != nil {
		t.Fatalf("rps=0: want nil limiter")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("tenant:x") {
			t.Fatalf("nil limiter denied request %d", i)
		}
	}
}

func TestTenantRateLimiterIsolatesTenants(t *testing.T) {
	l := NewTenantRateLimiter(1, 2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatalf("third request within burst window should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("other tenant should have its own bucket")
	}
}

func TestTenantRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenant := uuid.New()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{TenantID: tenant}))
		c.Next()
	})
	r.Use(NewTenantRateLimiter(1, 1).Middleware())
	r.POST("/ingest", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusAccepted || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes: want=[202 429] got=%v", codes)
	}
}
