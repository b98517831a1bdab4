package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/correlate"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const (
	CorrelationAttached = "attached"
	CorrelationCreated  = "created"
	CorrelationSkipped  = "skipped"
)

type CorrelationDetail struct {
	*types.CorrelatedIncident
	Alerts []*types.AlertEvent `json:"alerts"`
}

type CorrelationService interface {
	// Correlate attaches alert to the best matching active group or roots a
	// new group on it. Alerts already in a group are left alone.
	Correlate(dbc dbctx.Context, alert *types.AlertEvent) (*types.CorrelatedIncident, string, error)
	CloseStale(dbc dbctx.Context, tenantID uuid.UUID, now time.Time) (int, error)
	Recorrelate(dbc dbctx.Context, tenantID uuid.UUID) (int, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.CorrelatedIncident, int64, error)
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*CorrelationDetail, error)
}

type correlationService struct {
	db      *gorm.DB
	log     *logger.Logger
	cfg     NOCConfig
	rules   *correlate.Rules
	alerts  repos.AlertRepo
	groups  repos.CorrelationRepo
	tenants repos.TenantRepo
	notify  NOCNotifier
	metrics *observability.Metrics
}

func NewCorrelationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg NOCConfig,
	rules *correlate.Rules,
	alerts repos.AlertRepo,
	groups repos.CorrelationRepo,
	tenants repos.TenantRepo,
	notify NOCNotifier,
	metrics *observability.Metrics,
) CorrelationService {
	if rules == nil {
		rules = correlate.NewRules(correlate.DefaultRelatedTypes)
	}
	return &correlationService{
		db:      db,
		log:     baseLog.With("service", "CorrelationService"),
		cfg:     cfg.WithDefaults(),
		rules:   rules,
		alerts:  alerts,
		groups:  groups,
		tenants: tenants,
		notify:  notify,
		metrics: metrics,
	}
}

func (s *correlationService) threshold(dbc dbctx.Context, tenantID uuid.UUID) float64 {
	if t := tenantSettings(dbc, s.tenants, tenantID).CorrelationThreshold; t > 0 && t <= 1 {
		return t
	}
	return s.cfg.CorrelationThreshold
}

func (s *correlationService) Correlate(dbc dbctx.Context, alert *types.AlertEvent) (*types.CorrelatedIncident, string, error) {
	if alert == nil {
		return nil, CorrelationSkipped, fmt.Errorf("nil alert")
	}
	if alert.CorrelatedIncidentID != nil {
		g, err := s.groups.GetByID(dbc, alert.TenantID, *alert.CorrelatedIncidentID)
		return g, CorrelationSkipped, err
	}

	window := s.cfg.CorrelationWindow
	var group *types.CorrelatedIncident
	decision := CorrelationCreated

	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		active, err := s.groups.ListActiveSince(inner, alert.TenantID, alert.LastSeenAt.Add(-window))
		if err != nil {
			return fmt.Errorf("list candidate groups: %w", err)
		}
		candidates := make([]correlate.Candidate, 0, len(active))
		members := map[uuid.UUID][]*types.AlertEvent{}
		for _, g := range active {
			rows, err := s.alerts.ListByCorrelation(inner, alert.TenantID, g.ID)
			if err != nil {
				return fmt.Errorf("list group members: %w", err)
			}
			members[g.ID] = rows
			sigs := make([]correlate.Signal, 0, len(rows))
			for _, m := range rows {
				sigs = append(sigs, correlate.SignalOf(m))
			}
			candidates = append(candidates, correlate.Candidate{Group: g, Members: sigs})
		}

		match, ok := correlate.Best(correlate.SignalOf(alert), candidates, window, s.threshold(inner, alert.TenantID), s.rules)
		if ok {
			decision = CorrelationAttached
			group = match.Group
			all := append(members[group.ID], alert)
			root := correlate.PickRoot(all)
			group.AlertCount = len(all)
			if alert.LastSeenAt.After(group.LastAlertAt) {
				group.LastAlertAt = alert.LastSeenAt
			}
			if alert.FirstSeenAt.Before(group.FirstAlertAt) {
				group.FirstAlertAt = alert.FirstSeenAt
			}
			if match.Confidence > group.Confidence {
				group.Confidence = match.Confidence
			}
			group.RootAlertID = root.ID
			group.Severity = noc.MaxSeverity(group.Severity, alert.Severity)
			group.Title = correlate.GroupTitle(root, group.AlertCount)
			group.AddEntityKey(correlate.EntityKey(alert))
			if err := s.groups.Save(inner, group); err != nil {
				return fmt.Errorf("save group: %w", err)
			}
		} else {
			group = &types.CorrelatedIncident{
				TenantID:     alert.TenantID,
				RootAlertID:  alert.ID,
				Title:        correlate.GroupTitle(alert, 1),
				Severity:     alert.Severity,
				Status:       noc.CorrelationStatusActive,
				AlertCount:   1,
				FirstAlertAt: alert.FirstSeenAt,
				LastAlertAt:  alert.LastSeenAt,
			}
			group.AddEntityKey(correlate.EntityKey(alert))
			if err := s.groups.Create(inner, group); err != nil {
				return fmt.Errorf("create group: %w", err)
			}
		}
		return s.alerts.UpdateFields(inner, alert.TenantID, alert.ID, map[string]interface{}{
			"correlated_incident_id": group.ID,
		})
	})
	if err != nil {
		return nil, "", err
	}
	alert.CorrelatedIncidentID = &group.ID
	s.metrics.CorrelationDecision(decision)
	if s.notify != nil {
		s.notify.CorrelationUpdated(dbc.Ctx, alert.TenantID, group)
	}
	return group, decision, nil
}

func (s *correlationService) CloseStale(dbc dbctx.Context, tenantID uuid.UUID, now time.Time) (int, error) {
	window := s.cfg.CorrelationWindow
	groups, err := s.groups.ListActiveBefore(dbc, tenantID, now.Add(-2*window))
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, g := range groups {
		activeMembers, err := s.alerts.CountActiveInGroup(dbc, tenantID, g.ID)
		if err != nil {
			return closed, err
		}
		if !correlate.Stale(g, activeMembers, now, window) {
			continue
		}
		ok, err := s.groups.Close(dbc, tenantID, g.ID, now.UTC())
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
			g.Status = noc.CorrelationStatusClosed
			at := now.UTC()
			g.ClosedAt = &at
			if s.notify != nil {
				s.notify.CorrelationUpdated(dbc.Ctx, tenantID, g)
			}
		}
	}
	if closed > 0 {
		s.log.Info("Closed stale correlation groups", "tenant_id", tenantID, "closed", closed)
	}
	return closed, nil
}

func (s *correlationService) Recorrelate(dbc dbctx.Context, tenantID uuid.UUID) (int, error) {
	pending, err := s.alerts.ListActiveUncorrelated(dbc, tenantID, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range pending {
		if _, _, err := s.Correlate(dbc, a); err != nil {
			return n, fmt.Errorf("correlate alert %s: %w", a.ID, err)
		}
		n++
	}
	return n, nil
}

func (s *correlationService) List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.CorrelatedIncident, int64, error) {
	switch status {
	case "", noc.CorrelationStatusActive, noc.CorrelationStatusClosed:
	default:
		return nil, 0, apierr.Invalid("invalid_status", "unknown correlation status %q", status)
	}
	return s.groups.List(dbc, tenantID, status, limit, offset)
}

func (s *correlationService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*CorrelationDetail, error) {
	g, err := s.groups.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apierr.NotFound("correlation_not_found", "correlation %s", id)
	}
	alerts, err := s.alerts.ListByCorrelation(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &CorrelationDetail{CorrelatedIncident: g, Alerts: alerts}, nil
}
