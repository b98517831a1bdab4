package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	nochttp "github.com/yungbote/noc-backend/internal/http"
	httpH "github.com/yungbote/noc-backend/internal/http/handlers"
	httpMW "github.com/yungbote/noc-backend/internal/http/middleware"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/realtime"
)

func healthChecks(db *gorm.DB, rdb *goredis.Client) map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func wireServer(log *logger.Logger, cfg Config, db *gorm.DB, c Clients, s Services, hub *realtime.Hub, metrics *observability.Metrics) *nochttp.Server {
	log.Info("Wiring handlers...")
	return nochttp.NewServer(nochttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		TracingEnabled: cfg.Otel.Enabled,
		ServiceName:    cfg.Otel.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		IngestLimiter:  httpMW.NewTenantRateLimiter(cfg.IngestRPS, cfg.IngestBurst),

		AuthMiddleware: httpMW.NewAuthMiddleware(log, s.Auth),

		HealthHandler:      httpH.NewHealthHandler(healthChecks(db, c.Redis)),
		AuthHandler:        httpH.NewAuthHandler(s.Auth),
		AlertHandler:       httpH.NewAlertHandler(s.Alerts),
		CorrelationHandler: httpH.NewCorrelationHandler(s.Correlation),
		IncidentHandler:    httpH.NewIncidentHandler(s.Incidents),
		PlaybookHandler:    httpH.NewPlaybookHandler(s.Playbooks),
		MetricsHandler:     httpH.NewMetricsHandler(s.Query, s.Metrics, s.Jobs),
		AnalyticsHandler:   httpH.NewAnalyticsHandler(s.Recommendations, s.Heatmap),
		ExperimentHandler:  httpH.NewExperimentHandler(s.Experiments),
		JobHandler:         httpH.NewJobHandler(s.Jobs),
		RealtimeHandler:    httpH.NewRealtimeHandler(log, hub),
	})
}
