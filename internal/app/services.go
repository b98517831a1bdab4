package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/jobs/pipeline/alert_recorrelate"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/alert_rescore"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/correlation_close_stale"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/metric_cleanup"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/metric_rollup"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/metric_snapshot_capture"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/playbook_execute"
	"github.com/yungbote/noc-backend/internal/jobs/pipeline/recommendation_refresh"
	"github.com/yungbote/noc-backend/internal/jobs/runtime"
	"github.com/yungbote/noc-backend/internal/modules/noc/correlate"
	"github.com/yungbote/noc-backend/internal/modules/noc/priority"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/services"
)

type Services struct {
	Auth services.AuthService

	Jobs      services.JobService
	JobNotify services.JobNotifier
	Notify    services.NOCNotifier

	Alerts      services.AlertService
	Correlation services.CorrelationService
	Priority    services.PriorityService
	Incidents   services.IncidentService
	Playbooks   services.PlaybookService
	Metrics     services.MetricsService
	Query       services.TimeSeriesQueryService

	Heatmap         services.HeatmapService
	Recommendations services.RecommendationService
	Experiments     services.ExperimentService

	Registry *runtime.Registry
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients, emit services.Emitter, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	var s Services

	s.Auth = services.NewAuthService(db, log, r.Tenant, r.User, cfg.JWTSecretKey, cfg.AccessTokenTTL)

	s.Notify = services.NewNOCNotifier(emit)
	s.JobNotify = services.NewJobNotifier(log, emit, r.JobRunEvent)
	s.Jobs = services.NewJobService(db, log, r.JobRun, s.JobNotify, c.Temporal, cfg.Temporal.TaskQueue)

	var model *priority.Model
	if cfg.PriorityModel != "" {
		m, err := priority.LoadModel(cfg.PriorityModel)
		if err != nil {
			log.Warn("Priority model unavailable; using heuristic scoring", "path", cfg.PriorityModel, "error", err)
		} else {
			model = m
		}
	}
	s.Priority = services.NewPriorityService(log, model, r.Alert, r.Correlation, r.Tenant, metrics)
	s.Correlation = services.NewCorrelationService(
		db, log, cfg.NOC,
		correlate.NewRules(correlate.DefaultRelatedTypes),
		r.Alert, r.Correlation, r.Tenant,
		s.Notify, metrics,
	)
	s.Incidents = services.NewIncidentService(db, log, r.Incident, r.Alert, r.Correlation, r.User, s.Notify)
	s.Playbooks = services.NewPlaybookService(db, log, services.PlaybookDeps{
		Playbooks:  r.Playbook,
		Executions: r.PlaybookExecution,
		Alerts:     r.Alert,
		Tenants:    r.Tenant,
		Incidents:  s.Incidents,
		Jobs:       s.Jobs,
		Notify:     s.Notify,
		Email:      c.Email,
		SMS:        c.SMS,
		Metrics:    metrics,
	})
	s.Alerts = services.NewAlertService(db, log, cfg.NOC, r.Alert, s.Correlation, s.Priority, s.Playbooks, s.Notify, metrics)

	s.Metrics = services.NewMetricsService(db, log, cfg.NOC, services.MetricsDeps{
		Tenants:    r.Tenant,
		Alerts:     r.Alert,
		Incidents:  r.Incident,
		Executions: r.PlaybookExecution,
		Snapshots:  r.MetricSnapshot,
		Rollups:    r.MetricRollup,
		Heatmap:    r.Heatmap,
		JobRuns:    r.JobRun,
		JobEvents:  r.JobRunEvent,
		Locker:     c.Locker,
		Export:     c.Influx,
		Notify:     s.Notify,
		Metrics:    metrics,
	})
	s.Query = services.NewTimeSeriesQueryService(log, cfg.NOC, r.MetricSnapshot, r.MetricRollup)

	s.Heatmap = services.NewHeatmapService(log, r.Heatmap)
	s.Recommendations = services.NewRecommendationService(db, log, r.BehaviorProfile, r.NavigationTransition, r.Recommendation, s.Heatmap)
	s.Experiments = services.NewExperimentService(db, log, r.Experiment, r.ExperimentAssignment, r.ExperimentEvent)

	reg, err := wireRegistry(log, s)
	if err != nil {
		return s, err
	}
	s.Registry = reg
	return s, nil
}

func wireRegistry(log *logger.Logger, s Services) (*runtime.Registry, error) {
	reg := runtime.NewRegistry()
	handlers := []runtime.Handler{
		metric_snapshot_capture.New(log, s.Metrics),
		metric_rollup.New(log, s.Metrics),
		metric_cleanup.New(log, s.Metrics),
		alert_recorrelate.New(log, s.Correlation),
		alert_rescore.New(log, s.Priority),
		correlation_close_stale.New(log, s.Correlation),
		playbook_execute.New(log, s.Playbooks),
		recommendation_refresh.New(log, s.Recommendations),
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}
	return reg, nil
}
