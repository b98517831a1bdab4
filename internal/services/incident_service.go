package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type CreateIncidentInput struct {
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Severity             string      `json:"severity"`
	CorrelatedIncidentID *uuid.UUID  `json:"correlated_incident_id"`
	AlertIDs             []uuid.UUID `json:"alert_ids"`
}

type IncidentDetail struct {
	*types.Incident
	Alerts []*types.AlertEvent `json:"alerts"`
}

// IncidentStats are mean times in seconds over incidents opened since a
// cutoff. Means are zero when nothing qualifies.
type IncidentStats struct {
	Since        time.Time `json:"since"`
	Opened       int       `json:"opened"`
	Acknowledged int       `json:"acknowledged"`
	Resolved     int       `json:"resolved"`
	MTTASeconds  float64   `json:"mtta_seconds"`
	MTTRSeconds  float64   `json:"mttr_seconds"`
}

type IncidentService interface {
	Create(dbc dbctx.Context, tenantID uuid.UUID, actorID *uuid.UUID, in CreateIncidentInput) (*types.Incident, error)
	Transition(dbc dbctx.Context, tenantID, id uuid.UUID, to string, actorID *uuid.UUID, note string) (*types.Incident, error)
	// Assign clears the assignee when assigneeID is nil.
	Assign(dbc dbctx.Context, tenantID, id uuid.UUID, assigneeID, actorID *uuid.UUID) (*types.Incident, error)
	AddNote(dbc dbctx.Context, tenantID, id uuid.UUID, actorID *uuid.UUID, message string) (*types.IncidentTimelineEntry, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, f repos.IncidentFilter) ([]*types.Incident, int64, error)
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*IncidentDetail, error)
	Stats(dbc dbctx.Context, tenantID uuid.UUID, since time.Time) (*IncidentStats, error)
}

type incidentService struct {
	db        *gorm.DB
	log       *logger.Logger
	incidents repos.IncidentRepo
	alerts    repos.AlertRepo
	groups    repos.CorrelationRepo
	users     repos.UserRepo
	notify    NOCNotifier
	now       func() time.Time
}

func NewIncidentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	incidents repos.IncidentRepo,
	alerts repos.AlertRepo,
	groups repos.CorrelationRepo,
	users repos.UserRepo,
	notify NOCNotifier,
) IncidentService {
	return &incidentService{
		db:        db,
		log:       baseLog.With("service", "IncidentService"),
		incidents: incidents,
		alerts:    alerts,
		groups:    groups,
		users:     users,
		notify:    notify,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *incidentService) Create(dbc dbctx.Context, tenantID uuid.UUID, actorID *uuid.UUID, in CreateIncidentInput) (*types.Incident, error) {
	now := s.now()
	inc := &types.Incident{
		TenantID:    tenantID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Severity:    noc.SeverityMedium,
		Status:      noc.IncidentStatusOpen,
		OpenedAt:    now,
	}
	if strings.TrimSpace(in.Severity) != "" {
		sev, ok := noc.ParseSeverity(in.Severity)
		if !ok {
			return nil, apierr.Invalid("invalid_severity", "unknown severity %q", in.Severity)
		}
		inc.Severity = sev
	}

	alertIDs := append([]uuid.UUID(nil), in.AlertIDs...)
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		if in.CorrelatedIncidentID != nil {
			group, err := s.groups.GetByID(inner, tenantID, *in.CorrelatedIncidentID)
			if err != nil {
				return err
			}
			if group == nil {
				return apierr.NotFound("correlation_not_found", "correlation %s", *in.CorrelatedIncidentID)
			}
			existing, err := s.incidents.GetByCorrelation(inner, tenantID, group.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return apierr.Conflict("incident_exists", "incident #%d already tracks this correlation", existing.Number)
			}
			members, err := s.alerts.ListByCorrelation(inner, tenantID, group.ID)
			if err != nil {
				return err
			}
			for _, m := range members {
				alertIDs = append(alertIDs, m.ID)
			}
			if inc.Title == "" {
				inc.Title = group.Title
			}
			if strings.TrimSpace(in.Severity) == "" {
				inc.Severity = group.Severity
			}
			inc.CorrelatedIncidentID = &group.ID
		}
		if inc.Title == "" {
			return apierr.Invalid("missing_title", "title is required")
		}
		if err := s.incidents.Create(inner, inc); err != nil {
			return fmt.Errorf("create incident: %w", err)
		}
		if len(alertIDs) > 0 {
			if err := s.alerts.LinkIncident(inner, tenantID, alertIDs, inc.ID); err != nil {
				return fmt.Errorf("link alerts: %w", err)
			}
		}
		return s.incidents.AppendTimeline(inner, &types.IncidentTimelineEntry{
			IncidentID: inc.ID,
			Kind:       noc.TimelineKindCreated,
			Message:    fmt.Sprintf("Incident #%d opened", inc.Number),
			ActorID:    actorID,
			At:         now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Incident created", "tenant_id", tenantID, "incident_id", inc.ID, "number", inc.Number)
	if s.notify != nil {
		s.notify.IncidentUpdated(dbc.Ctx, tenantID, inc.ID, inc)
	}
	return inc, nil
}

func (s *incidentService) mustGet(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Incident, error) {
	inc, err := s.incidents.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, apierr.NotFound("incident_not_found", "incident %s", id)
	}
	return inc, nil
}

func (s *incidentService) Transition(dbc dbctx.Context, tenantID, id uuid.UUID, to string, actorID *uuid.UUID, note string) (*types.Incident, error) {
	to = strings.TrimSpace(strings.ToLower(to))
	var inc *types.Incident
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		cur, err := s.mustGet(inner, tenantID, id)
		if err != nil {
			return err
		}
		if !noc.CanTransitionIncident(cur.Status, to) {
			return apierr.Conflict("invalid_transition", "cannot move incident from %s to %s", cur.Status, to)
		}
		now := s.now()
		updates := map[string]interface{}{"status": to}
		switch to {
		case noc.IncidentStatusAcknowledged:
			if cur.AcknowledgedAt == nil {
				updates["acknowledged_at"] = now
				cur.AcknowledgedAt = &now
			}
		case noc.IncidentStatusResolved:
			if cur.ResolvedAt == nil {
				updates["resolved_at"] = now
				cur.ResolvedAt = &now
			}
		case noc.IncidentStatusClosed:
			if cur.ClosedAt == nil {
				updates["closed_at"] = now
				cur.ClosedAt = &now
			}
		}
		ok, err := s.incidents.UpdateFieldsIfStatus(inner, tenantID, id, cur.Status, updates)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict("concurrent_update", "incident changed concurrently")
		}
		msg := fmt.Sprintf("%s -> %s", cur.Status, to)
		if note = strings.TrimSpace(note); note != "" {
			msg += ": " + note
		}
		cur.Status = to
		cur.UpdatedAt = now
		inc = cur
		return s.incidents.AppendTimeline(inner, &types.IncidentTimelineEntry{
			IncidentID: id,
			Kind:       noc.TimelineKindTransition,
			Message:    msg,
			ActorID:    actorID,
			At:         now,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.IncidentUpdated(dbc.Ctx, tenantID, id, inc)
	}
	return inc, nil
}

func (s *incidentService) Assign(dbc dbctx.Context, tenantID, id uuid.UUID, assigneeID, actorID *uuid.UUID) (*types.Incident, error) {
	var inc *types.Incident
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		cur, err := s.mustGet(inner, tenantID, id)
		if err != nil {
			return err
		}
		msg := "Unassigned"
		if assigneeID != nil {
			u, err := s.users.GetByID(inner, *assigneeID)
			if err != nil {
				return err
			}
			if u == nil || u.TenantID != tenantID {
				return apierr.Invalid("invalid_assignee", "user %s is not a member of this tenant", *assigneeID)
			}
			msg = "Assigned to " + u.Email
		}
		if err := s.incidents.UpdateFields(inner, tenantID, id, map[string]interface{}{"assignee_id": assigneeID}); err != nil {
			return err
		}
		cur.AssigneeID = assigneeID
		inc = cur
		return s.incidents.AppendTimeline(inner, &types.IncidentTimelineEntry{
			IncidentID: id,
			Kind:       noc.TimelineKindAssigned,
			Message:    msg,
			ActorID:    actorID,
			At:         s.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.IncidentUpdated(dbc.Ctx, tenantID, id, inc)
	}
	return inc, nil
}

func (s *incidentService) AddNote(dbc dbctx.Context, tenantID, id uuid.UUID, actorID *uuid.UUID, message string) (*types.IncidentTimelineEntry, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.Invalid("missing_message", "note message is required")
	}
	if _, err := s.mustGet(dbc, tenantID, id); err != nil {
		return nil, err
	}
	entry := &types.IncidentTimelineEntry{
		IncidentID: id,
		Kind:       noc.TimelineKindNote,
		Message:    message,
		ActorID:    actorID,
		At:         s.now(),
	}
	if err := s.incidents.AppendTimeline(dbc, entry); err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.Broadcast(dbc.Ctx, tenantID, "", map[string]any{"incident_id": id, "note": entry})
	}
	return entry, nil
}

func (s *incidentService) List(dbc dbctx.Context, tenantID uuid.UUID, f repos.IncidentFilter) ([]*types.Incident, int64, error) {
	for _, st := range f.Statuses {
		if _, ok := incidentStatuses[st]; !ok {
			return nil, 0, apierr.Invalid("invalid_status", "unknown incident status %q", st)
		}
	}
	for i, raw := range f.Severities {
		sev, ok := noc.ParseSeverity(raw)
		if !ok {
			return nil, 0, apierr.Invalid("invalid_severity", "unknown severity %q", raw)
		}
		f.Severities[i] = string(sev)
	}
	return s.incidents.List(dbc, tenantID, f)
}

var incidentStatuses = map[string]struct{}{
	noc.IncidentStatusOpen:          {},
	noc.IncidentStatusAcknowledged:  {},
	noc.IncidentStatusInvestigating: {},
	noc.IncidentStatusResolved:      {},
	noc.IncidentStatusClosed:        {},
}

func (s *incidentService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*IncidentDetail, error) {
	inc, err := s.incidents.GetByIDWithTimeline(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, apierr.NotFound("incident_not_found", "incident %s", id)
	}
	alerts, err := s.alerts.ListByIncident(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &IncidentDetail{Incident: inc, Alerts: alerts}, nil
}

func (s *incidentService) Stats(dbc dbctx.Context, tenantID uuid.UUID, since time.Time) (*IncidentStats, error) {
	rows, err := s.incidents.ListOpenedSince(dbc, tenantID, since)
	if err != nil {
		return nil, err
	}
	out := summarizeIncidents(since, rows)
	return &out, nil
}

func summarizeIncidents(since time.Time, rows []*types.Incident) IncidentStats {
	out := IncidentStats{Since: since.UTC(), Opened: len(rows)}
	var ackTotal, resTotal float64
	for _, inc := range rows {
		if inc.AcknowledgedAt != nil {
			out.Acknowledged++
			ackTotal += inc.AcknowledgedAt.Sub(inc.OpenedAt).Seconds()
		}
		if inc.ResolvedAt != nil {
			out.Resolved++
			resTotal += inc.ResolvedAt.Sub(inc.OpenedAt).Seconds()
		}
	}
	if out.Acknowledged > 0 {
		out.MTTASeconds = ackTotal / float64(out.Acknowledged)
	}
	if out.Resolved > 0 {
		out.MTTRSeconds = resTotal / float64(out.Resolved)
	}
	return out
}
