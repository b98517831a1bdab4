package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
)

func TestAttachTraceContextIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name      string
		headers   map[string]string
		wantReq   string
		wantTrace string
	}{
		{"request id", map[string]string{headerRequestID: "req-1", headerTraceID: "tr-1"}, "req-1", "tr-1"},
		{"correlation id fallback", map[string]string{headerCorrelationID: "am-42"}, "am-42", "am-42"},
		{"request id wins", map[string]string{headerRequestID: "req-2", headerCorrelationID: "am-43"}, "req-2", "req-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen *ctxutil.TraceData
			r := gin.New()
			r.Use(AttachTraceContext())
			r.GET("/x", func(c *gin.Context) {
				seen = ctxutil.GetTraceData(c.Request.Context())
				c.Status(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if got := rec.Header().Get(headerRequestID); got != tc.wantReq {
				t.Fatalf("request id: want=%q got=%q", tc.wantReq, got)
			}
			if seen == nil || seen.TraceID != tc.wantTrace {
				t.Fatalf("trace id: want=%q got=%+v", tc.wantTrace, seen)
			}
		})
	}
}

func TestInboundIDRejectsUnsafeValues(t *testing.T) {
	for _, raw := range []string{"", "has space", "line\nbreak", string(make([]byte, maxInboundIDLen+1))} {
		if got := inboundID(raw); got != "" {
			t.Fatalf("inboundID(%q): want empty got=%q", raw, got)
		}
	}
	if got := inboundID("  abc-123  "); got != "abc-123" {
		t.Fatalf("trimmed: want=abc-123 got=%q", got)
	}
}
