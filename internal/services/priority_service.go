package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/modules/noc/priority"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type PriorityService interface {
	// Apply scores alert and persists the score, band and source on it.
	Apply(dbc dbctx.Context, alert *types.AlertEvent) (priority.Result, error)
	// Rescore re-applies scoring to every active alert of the tenant.
	Rescore(dbc dbctx.Context, tenantID uuid.UUID) (int, error)
	UsingModel() bool
}

type priorityService struct {
	log     *logger.Logger
	scorer  *priority.Scorer
	alerts  repos.AlertRepo
	groups  repos.CorrelationRepo
	tenants repos.TenantRepo
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPriorityService falls back to the heuristic for a nil or incompatible model.
func NewPriorityService(
	baseLog *logger.Logger,
	model *priority.Model,
	alerts repos.AlertRepo,
	groups repos.CorrelationRepo,
	tenants repos.TenantRepo,
	metrics *observability.Metrics,
) PriorityService {
	log := baseLog.With("service", "PriorityService")
	scorer := priority.NewScorer(model)
	if model != nil && !scorer.HasModel() {
		log.Warn("Priority model feature set mismatch; using heuristic", "version", model.Version)
	}
	return &priorityService{
		log:     log,
		scorer:  scorer,
		alerts:  alerts,
		groups:  groups,
		tenants: tenants,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *priorityService) UsingModel() bool { return s.scorer.HasModel() }

func (s *priorityService) context(dbc dbctx.Context, settings types.TenantSettings, alert *types.AlertEvent) priority.Context {
	now := s.now()
	pc := priority.Context{
		Now:           now,
		Criticality:   settings.EntityCriticality[alert.EntityID],
		BusinessHours: settings.InBusinessHours(now),
	}
	if alert.CorrelatedIncidentID != nil {
		if g, err := s.groups.GetByID(dbc, alert.TenantID, *alert.CorrelatedIncidentID); err == nil && g != nil {
			pc.CorrelatedCount = g.AlertCount
		}
	}
	return pc
}

func (s *priorityService) apply(dbc dbctx.Context, settings types.TenantSettings, alert *types.AlertEvent) (priority.Result, error) {
	res := s.scorer.Score(priority.Extract(alert, s.context(dbc, settings, alert)))
	if err := s.alerts.UpdateFields(dbc, alert.TenantID, alert.ID, map[string]interface{}{
		"priority_score":  res.Score,
		"priority":        res.Priority,
		"priority_source": res.Source,
	}); err != nil {
		return res, fmt.Errorf("persist priority: %w", err)
	}
	alert.PriorityScore = res.Score
	alert.Priority = res.Priority
	alert.PrioritySource = res.Source
	s.metrics.PriorityScored(res.Source)
	return res, nil
}

func (s *priorityService) Apply(dbc dbctx.Context, alert *types.AlertEvent) (priority.Result, error) {
	if alert == nil {
		return priority.Result{}, fmt.Errorf("nil alert")
	}
	return s.apply(dbc, tenantSettings(dbc, s.tenants, alert.TenantID), alert)
}

func (s *priorityService) Rescore(dbc dbctx.Context, tenantID uuid.UUID) (int, error) {
	active, err := s.alerts.ListActive(dbc, tenantID, 0)
	if err != nil {
		return 0, err
	}
	settings := tenantSettings(dbc, s.tenants, tenantID)
	n := 0
	for _, a := range active {
		before := a.Priority
		if _, err := s.apply(dbc, settings, a); err != nil {
			return n, err
		}
		if a.Priority != before {
			s.log.Debug("Alert priority changed", "alert_id", a.ID, "from", before, "to", a.Priority)
		}
		n++
	}
	return n, nil
}
