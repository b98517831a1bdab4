package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/dedup"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/services"
)

type stubAlerts struct {
	outcome  dedup.Outcome
	tenantID uuid.UUID
	filter   repos.AlertFilter
	ackBy    uuid.UUID
}

func (s *stubAlerts) Ingest(_ dbctx.Context, tenantID uuid.UUID, in services.AlertInput) (*services.IngestResult, error) {
	s.tenantID = tenantID
	return &services.IngestResult{
		Alert:   &types.AlertEvent{TenantID: tenantID, Source: in.Source, AlertType: in.AlertType},
		Outcome: s.outcome,
	}, nil
}

func (s *stubAlerts) IngestAlertmanager(dbctx.Context, uuid.UUID, services.AlertmanagerWebhook) (*services.AlertmanagerResult, error) {
	return &services.AlertmanagerResult{}, nil
}

func (s *stubAlerts) Acknowledge(_ dbctx.Context, _, alertID, userID uuid.UUID) (*types.AlertEvent, error) {
	s.ackBy = userID
	return nil, apierr.Conflict("invalid_transition", "alert %s is resolved", alertID)
}

func (s *stubAlerts) Resolve(dbctx.Context, uuid.UUID, uuid.UUID, *uuid.UUID) (*types.AlertEvent, error) {
	return &types.AlertEvent{Status: noc.AlertStatusResolved}, nil
}

func (s *stubAlerts) Suppress(dbctx.Context, uuid.UUID, uuid.UUID) (*types.AlertEvent, error) {
	return &types.AlertEvent{Status: noc.AlertStatusSuppressed}, nil
}

func (s *stubAlerts) List(_ dbctx.Context, _ uuid.UUID, f repos.AlertFilter) ([]*types.AlertEvent, int64, error) {
	s.filter = f
	return []*types.AlertEvent{}, 0, nil
}

func (s *stubAlerts) Get(_ dbctx.Context, _ uuid.UUID, id uuid.UUID) (*types.AlertEvent, error) {
	return nil, apierr.NotFound("alert_not_found", "alert %s", id)
}

func withCaller(rd *ctxutil.RequestData) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func alertRouter(stub *stubAlerts, rd *ctxutil.RequestData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAlertHandler(stub)
	r := gin.New()
	r.Use(withCaller(rd))
	r.POST("/alerts", h.Ingest)
	r.GET("/alerts", h.List)
	r.GET("/alerts/:id", h.Get)
	r.POST("/alerts/:id/acknowledge", h.Acknowledge)
	return r
}

func do(r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestAlertIngestStatusByOutcome(t *testing.T) {
	rd := &ctxutil.RequestData{UserID: uuid.New(), TenantID: uuid.New()}
	body := map[string]any{"source": "zabbix", "alert_type": "link_down"}

	cases := []struct {
		outcome dedup.Outcome
		want    int
	}{
		{dedup.OutcomeCreated, http.StatusCreated},
		{dedup.OutcomeDeduplicated, http.StatusOK},
		{dedup.OutcomeReopened, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			stub := &stubAlerts{outcome: tc.outcome}
			rec := do(alertRouter(stub, rd), http.MethodPost, "/alerts", body)
			if rec.Code != tc.want {
				t.Fatalf("status: want=%d got=%d", tc.want, rec.Code)
			}
			if stub.tenantID != rd.TenantID {
				t.Fatalf("tenant: want=%s got=%s", rd.TenantID, stub.tenantID)
			}
		})
	}
}

func TestAlertIngestRejectsMissingFields(t *testing.T) {
	rd := &ctxutil.RequestData{UserID: uuid.New(), TenantID: uuid.New()}
	rec := do(alertRouter(&stubAlerts{}, rd), http.MethodPost, "/alerts", map[string]any{"source": "zabbix"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
	}
}

func TestAlertListParsesFilter(t *testing.T) {
	rd := &ctxutil.RequestData{UserID: uuid.New(), TenantID: uuid.New()}
	stub := &stubAlerts{}
	rec := do(alertRouter(stub, rd), http.MethodGet, "/alerts?status=open,acknowledged&severity=critical&limit=10&since=2024-05-01T00:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(stub.filter.Statuses) != 2 || stub.filter.Statuses[1] != noc.AlertStatusAcknowledged {
		t.Fatalf("statuses: want=[open acknowledged] got=%v", stub.filter.Statuses)
	}
	if stub.filter.Limit != 10 {
		t.Fatalf("limit: want=10 got=%d", stub.filter.Limit)
	}
	if stub.filter.Since == nil || stub.filter.Since.Year() != 2024 {
		t.Fatalf("since: want 2024-05-01 got=%v", stub.filter.Since)
	}

	rec = do(alertRouter(stub, rd), http.MethodGet, "/alerts?limit=-3", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit: want=%d got=%d", http.StatusBadRequest, rec.Code)
	}
}

func TestAlertErrorsMapToStatus(t *testing.T) {
	rd := &ctxutil.RequestData{UserID: uuid.New(), TenantID: uuid.New()}
	stub := &stubAlerts{}
	r := alertRouter(stub, rd)

	rec := do(r, http.MethodGet, "/alerts/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_id" {
		t.Fatalf("bad id: want=400/invalid_id got=%d/%s", rec.Code, errorCode(t, rec))
	}

	rec = do(r, http.MethodGet, "/alerts/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "alert_not_found" {
		t.Fatalf("missing: want=404/alert_not_found got=%d/%s", rec.Code, errorCode(t, rec))
	}

	rec = do(r, http.MethodPost, "/alerts/"+uuid.NewString()+"/acknowledge", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("ack conflict: want=%d got=%d", http.StatusConflict, rec.Code)
	}
	if stub.ackBy != rd.UserID {
		t.Fatalf("ack actor: want=%s got=%s", rd.UserID, stub.ackBy)
	}
}
