package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/noc-backend/internal/domain/auth"
	httpH "github.com/yungbote/noc-backend/internal/http/handlers"
	httpMW "github.com/yungbote/noc-backend/internal/http/middleware"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	TracingEnabled bool
	ServiceName    string
	CORSOrigins    []string
	IngestLimiter  *httpMW.TenantRateLimiter

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler      *httpH.HealthHandler
	AuthHandler        *httpH.AuthHandler
	AlertHandler       *httpH.AlertHandler
	CorrelationHandler *httpH.CorrelationHandler
	IncidentHandler    *httpH.IncidentHandler
	PlaybookHandler    *httpH.PlaybookHandler
	MetricsHandler     *httpH.MetricsHandler
	AnalyticsHandler   *httpH.AnalyticsHandler
	ExperimentHandler  *httpH.ExperimentHandler
	JobHandler         *httpH.JobHandler
	RealtimeHandler    *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "noc-api"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.AuthHandler != nil {
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
	}

	protected := api.Group("/")
	authed := []gin.HandlerFunc{}
	if cfg.AuthMiddleware != nil {
		authed = append(authed, cfg.AuthMiddleware.RequireAuth())
		protected.Use(authed...)
	}
	can := httpMW.RequireCapability

	if cfg.AuthHandler != nil {
		protected.GET("/me", cfg.AuthHandler.Me)
		protected.POST("/users", can(auth.CapUsersManage), cfg.AuthHandler.CreateUser)
	}

	noc := protected.Group("/noc")

	if h := cfg.AlertHandler; h != nil {
		ingest := []gin.HandlerFunc{can(auth.CapAlertsIngest), cfg.IngestLimiter.Middleware()}
		noc.POST("/alerts", append(ingest, h.Ingest)...)
		noc.POST("/webhooks/alertmanager", append(ingest, h.Alertmanager)...)
		noc.GET("/alerts", can(auth.CapAlertsRead), h.List)
		noc.GET("/alerts/:id", can(auth.CapAlertsRead), h.Get)
		noc.POST("/alerts/:id/acknowledge", can(auth.CapAlertsWrite), h.Acknowledge)
		noc.POST("/alerts/:id/resolve", can(auth.CapAlertsWrite), h.Resolve)
		noc.POST("/alerts/:id/suppress", can(auth.CapAlertsWrite), h.Suppress)
	}

	if h := cfg.CorrelationHandler; h != nil {
		noc.GET("/correlations", can(auth.CapAlertsRead), h.List)
		noc.GET("/correlations/:id", can(auth.CapAlertsRead), h.Get)
	}

	if h := cfg.IncidentHandler; h != nil {
		noc.GET("/incidents/stats", can(auth.CapAlertsRead), h.Stats)
		noc.POST("/incidents", can(auth.CapIncidentsManage), h.Create)
		noc.GET("/incidents", can(auth.CapAlertsRead), h.List)
		noc.GET("/incidents/:id", can(auth.CapAlertsRead), h.Get)
		noc.POST("/incidents/:id/transition", can(auth.CapIncidentsManage), h.Transition)
		noc.POST("/incidents/:id/assign", can(auth.CapIncidentsManage), h.Assign)
		noc.POST("/incidents/:id/notes", can(auth.CapIncidentsManage), h.AddNote)
	}

	if h := cfg.PlaybookHandler; h != nil {
		noc.POST("/playbooks", can(auth.CapPlaybooksManage), h.Create)
		noc.GET("/playbooks", can(auth.CapAlertsRead), h.List)
		noc.GET("/playbooks/:id", can(auth.CapAlertsRead), h.Get)
		noc.PUT("/playbooks/:id", can(auth.CapPlaybooksManage), h.Update)
		noc.DELETE("/playbooks/:id", can(auth.CapPlaybooksManage), h.Delete)
		noc.GET("/playbook-executions", can(auth.CapAlertsRead), h.ListExecutions)
		noc.POST("/playbook-executions/:id/approve", can(auth.CapPlaybooksApprove), h.Approve)
		noc.POST("/playbook-executions/:id/reject", can(auth.CapPlaybooksApprove), h.Reject)
		noc.POST("/playbook-executions/:id/cancel", can(auth.CapPlaybooksApprove), h.Cancel)
	}

	if h := cfg.MetricsHandler; h != nil {
		noc.GET("/metrics/query", can(auth.CapMetricsRead), h.Query)
		noc.GET("/metrics/summary", can(auth.CapMetricsRead), h.Summary)
		noc.GET("/metrics/storage", can(auth.CapMetricsRead), h.Storage)
		noc.POST("/metrics/rollup", can(auth.CapMetricsAdmin), h.Rollup)
	}

	if h := cfg.AnalyticsHandler; h != nil {
		protected.POST("/analytics/events", can(auth.CapAnalyticsWrite), h.TrackEvents)
		protected.GET("/analytics/recommendations/content", can(auth.CapAnalyticsRead), h.ContentRecommendations)
		protected.GET("/analytics/recommendations/navigation", can(auth.CapAnalyticsRead), h.NavigationRecommendations)
		protected.POST("/analytics/heatmap/clicks", can(auth.CapAnalyticsWrite), h.RecordClicks)
		protected.GET("/analytics/heatmap", can(auth.CapAnalyticsRead), h.Heatmap)
	}

	if h := cfg.ExperimentHandler; h != nil {
		protected.POST("/experiments", can(auth.CapExperimentsManage), h.Create)
		protected.GET("/experiments", can(auth.CapAnalyticsRead), h.List)
		protected.POST("/experiments/:key/start", can(auth.CapExperimentsManage), h.Start)
		protected.POST("/experiments/:key/stop", can(auth.CapExperimentsManage), h.Stop)
		protected.POST("/experiments/:key/assign", can(auth.CapAnalyticsWrite), h.Assign)
		protected.POST("/experiments/:key/events", can(auth.CapAnalyticsWrite), h.Track)
		protected.GET("/experiments/:key/results", can(auth.CapAnalyticsRead), h.Results)
	}

	if h := cfg.JobHandler; h != nil {
		protected.GET("/jobs/:id", h.GetJob)
		protected.POST("/jobs/:id/cancel", h.CancelJob)
	}

	if h := cfg.RealtimeHandler; h != nil {
		protected.GET("/realtime/stream", h.SSEStream)
		protected.POST("/realtime/subscribe", h.Subscribe)
		protected.POST("/realtime/unsubscribe", h.Unsubscribe)
		r.GET("/ws/noc", append(authed, h.WebSocket)...)
	}

	return r
}
