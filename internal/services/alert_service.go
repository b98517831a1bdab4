package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/dedup"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const ingestAttempts = 3

var errIngestRace = errors.New("ingest raced another writer")

type AlertInput struct {
	Source      string            `json:"source" binding:"required"`
	AlertType   string            `json:"alert_type" binding:"required"`
	Severity    string            `json:"severity"`
	EntityType  string            `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Labels      map[string]string `json:"labels"`
	Fingerprint string            `json:"fingerprint"`
}

type IngestResult struct {
	Alert   *types.AlertEvent `json:"alert"`
	Outcome dedup.Outcome     `json:"outcome"`
}

// AlertmanagerWebhook is the Alertmanager v4 webhook body.
type AlertmanagerWebhook struct {
	Version           string              `json:"version"`
	GroupKey          string              `json:"groupKey"`
	Status            string              `json:"status"`
	Receiver          string              `json:"receiver"`
	CommonLabels      map[string]string   `json:"commonLabels"`
	CommonAnnotations map[string]string   `json:"commonAnnotations"`
	Alerts            []AlertmanagerAlert `json:"alerts"`
}

type AlertmanagerAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

type AlertmanagerResult struct {
	Ingested []*IngestResult `json:"ingested"`
	Resolved int             `json:"resolved"`
	Skipped  int             `json:"skipped"`
}

type AlertService interface {
	Ingest(dbc dbctx.Context, tenantID uuid.UUID, in AlertInput) (*IngestResult, error)
	IngestAlertmanager(dbc dbctx.Context, tenantID uuid.UUID, hook AlertmanagerWebhook) (*AlertmanagerResult, error)
	Acknowledge(dbc dbctx.Context, tenantID, alertID, userID uuid.UUID) (*types.AlertEvent, error)
	// Resolve takes a nil userID for system resolutions.
	Resolve(dbc dbctx.Context, tenantID, alertID uuid.UUID, userID *uuid.UUID) (*types.AlertEvent, error)
	Suppress(dbc dbctx.Context, tenantID, alertID uuid.UUID) (*types.AlertEvent, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, f repos.AlertFilter) ([]*types.AlertEvent, int64, error)
	Get(dbc dbctx.Context, tenantID, alertID uuid.UUID) (*types.AlertEvent, error)
}

type alertService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         NOCConfig
	alerts      repos.AlertRepo
	correlation CorrelationService
	priority    PriorityService
	playbooks   PlaybookService
	notify      NOCNotifier
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewAlertService accepts nil correlation, priority, playbook and notify
// collaborators; the matching post-ingest step is then skipped.
func NewAlertService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg NOCConfig,
	alerts repos.AlertRepo,
	correlation CorrelationService,
	priority PriorityService,
	playbooks PlaybookService,
	notify NOCNotifier,
	metrics *observability.Metrics,
) AlertService {
	return &alertService{
		db:          db,
		log:         baseLog.With("service", "AlertService"),
		cfg:         cfg.WithDefaults(),
		alerts:      alerts,
		correlation: correlation,
		priority:    priority,
		playbooks:   playbooks,
		notify:      notify,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeInput(in AlertInput) (AlertInput, noc.Severity, error) {
	in.Source = strings.TrimSpace(in.Source)
	in.AlertType = strings.TrimSpace(in.AlertType)
	in.EntityType = strings.TrimSpace(in.EntityType)
	in.EntityID = strings.TrimSpace(in.EntityID)
	in.Title = strings.TrimSpace(in.Title)
	if in.Source == "" {
		return in, "", apierr.Invalid("missing_source", "source is required")
	}
	if in.AlertType == "" {
		return in, "", apierr.Invalid("missing_alert_type", "alert_type is required")
	}
	sev := noc.SeverityMedium
	if strings.TrimSpace(in.Severity) != "" {
		parsed, ok := noc.ParseSeverity(in.Severity)
		if !ok {
			return in, "", apierr.Invalid("invalid_severity", "unknown severity %q", in.Severity)
		}
		sev = parsed
	}
	if in.Title == "" {
		in.Title = in.AlertType
	}
	return in, sev, nil
}

func dedupKeyFor(tenantID uuid.UUID, in AlertInput) string {
	return dedup.Key(dedup.KeyInput{
		TenantID:    tenantID.String(),
		Source:      in.Source,
		AlertType:   in.AlertType,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		Fingerprint: in.Fingerprint,
		Message:     in.Message,
	})
}

func (s *alertService) Ingest(dbc dbctx.Context, tenantID uuid.UUID, in AlertInput) (*IngestResult, error) {
	in, sev, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	key := dedupKeyFor(tenantID, in)

	var res *IngestResult
	for attempt := 1; attempt <= ingestAttempts; attempt++ {
		res, err = s.ingestOnce(dbc, tenantID, in, sev, key)
		if err == nil {
			break
		}
		if !errors.Is(err, errIngestRace) && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		s.log.Debug("Alert ingest raced; retrying", "tenant_id", tenantID, "dedup_key", key, "attempt", attempt)
	}
	if err != nil {
		return nil, fmt.Errorf("ingest alert: %w", err)
	}
	s.metrics.AlertIngested(string(res.Outcome))
	s.afterIngest(dbc, res)
	return res, nil
}

func (s *alertService) ingestOnce(dbc dbctx.Context, tenantID uuid.UUID, in AlertInput, sev noc.Severity, key string) (*IngestResult, error) {
	now := s.now()
	window := s.cfg.DedupWindow
	var res *IngestResult

	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		active, err := s.alerts.GetActiveByDedupKey(inner, tenantID, key)
		if err != nil {
			return err
		}
		var resolved *types.AlertEvent
		if active == nil {
			resolved, err = s.alerts.GetResolvedByDedupKeySince(inner, tenantID, key, now.Add(-window))
			if err != nil {
				return err
			}
		}

		d := dedup.Decide(active, resolved, now, window)
		switch d.Outcome {
		case dedup.OutcomeDeduplicated:
			target := d.Target
			newSev := noc.MaxSeverity(target.Severity, sev)
			updates := map[string]interface{}{
				"suppressed_count": gorm.Expr("suppressed_count + 1"),
				"last_seen_at":     now,
				"severity":         newSev,
			}
			if in.Message != "" {
				updates["message"] = in.Message
			}
			ok, err := s.alerts.UpdateFieldsIfStatus(inner, tenantID, target.ID, noc.ActiveAlertStatuses, updates)
			if err != nil {
				return err
			}
			if !ok {
				return errIngestRace
			}
			if d.WindowExpired {
				s.log.Debug("Dedup window restarted", "alert_id", target.ID, "last_seen_at", target.LastSeenAt)
			}
			target.SuppressedCount++
			target.LastSeenAt = now
			target.Severity = newSev
			if in.Message != "" {
				target.Message = in.Message
			}
			res = &IngestResult{Alert: target, Outcome: dedup.OutcomeDeduplicated}

		case dedup.OutcomeReopened:
			target := d.Target
			newSev := noc.MaxSeverity(target.Severity, sev)
			ok, err := s.alerts.UpdateFieldsIfStatus(inner, tenantID, target.ID, []string{noc.AlertStatusResolved}, map[string]interface{}{
				"status":          noc.AlertStatusOpen,
				"resolved_at":     nil,
				"resolved_by":     nil,
				"acknowledged_at": nil,
				"acknowledged_by": nil,
				"last_seen_at":    now,
				"severity":        newSev,
			})
			if err != nil {
				return err
			}
			if !ok {
				return errIngestRace
			}
			target.Status = noc.AlertStatusOpen
			target.ResolvedAt = nil
			target.ResolvedBy = nil
			target.AcknowledgedAt = nil
			target.AcknowledgedBy = nil
			target.LastSeenAt = now
			target.Severity = newSev
			res = &IngestResult{Alert: target, Outcome: dedup.OutcomeReopened}

		default:
			labels := datatypes.JSON([]byte(`{}`))
			if len(in.Labels) > 0 {
				b, err := json.Marshal(in.Labels)
				if err != nil {
					return apierr.Invalid("invalid_labels", "encode labels: %v", err)
				}
				labels = datatypes.JSON(b)
			}
			alert := &types.AlertEvent{
				TenantID:    tenantID,
				Source:      in.Source,
				AlertType:   in.AlertType,
				Severity:    sev,
				EntityType:  in.EntityType,
				EntityID:    in.EntityID,
				Title:       in.Title,
				Message:     in.Message,
				Labels:      labels,
				Fingerprint: strings.TrimSpace(in.Fingerprint),
				DedupKey:    key,
				Status:      noc.AlertStatusOpen,
				FirstSeenAt: now,
				LastSeenAt:  now,
			}
			if err := s.alerts.Create(inner, alert); err != nil {
				return err
			}
			res = &IngestResult{Alert: alert, Outcome: dedup.OutcomeCreated}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// afterIngest runs correlation, scoring, playbooks and the realtime event.
// Failures are logged; the alert row is already committed by then.
func (s *alertService) afterIngest(dbc dbctx.Context, res *IngestResult) {
	alert := res.Alert
	fresh := res.Outcome != dedup.OutcomeDeduplicated

	if fresh && s.correlation != nil {
		if _, _, err := s.correlation.Correlate(dbc, alert); err != nil {
			s.log.Warn("Correlation failed", "alert_id", alert.ID, "error", err)
		}
	}
	if s.priority != nil {
		if _, err := s.priority.Apply(dbc, alert); err != nil {
			s.log.Warn("Priority scoring failed", "alert_id", alert.ID, "error", err)
		}
	}
	if fresh && s.playbooks != nil {
		if _, err := s.playbooks.Trigger(dbc, alert); err != nil {
			s.log.Warn("Playbook trigger failed", "alert_id", alert.ID, "error", err)
		}
	}
	if s.notify == nil {
		return
	}
	if res.Outcome == dedup.OutcomeCreated {
		s.notify.AlertCreated(dbc.Ctx, alert.TenantID, alert)
	} else {
		s.notify.AlertUpdated(dbc.Ctx, alert.TenantID, alert)
	}
}

func (s *alertService) IngestAlertmanager(dbc dbctx.Context, tenantID uuid.UUID, hook AlertmanagerWebhook) (*AlertmanagerResult, error) {
	out := &AlertmanagerResult{Ingested: []*IngestResult{}}
	for _, am := range hook.Alerts {
		in := alertInputFromAlertmanager(hook, am)
		if in.AlertType == "" {
			out.Skipped++
			continue
		}
		if strings.EqualFold(am.Status, "resolved") {
			ok, err := s.resolveByIdentity(dbc, tenantID, in)
			if err != nil {
				return out, err
			}
			if ok {
				out.Resolved++
			} else {
				out.Skipped++
			}
			continue
		}
		res, err := s.Ingest(dbc, tenantID, in)
		if err != nil {
			if status, _ := apierr.StatusOf(err); status < http.StatusInternalServerError {
				s.log.Warn("Skipping alertmanager alert", "alertname", in.AlertType, "error", err)
				out.Skipped++
				continue
			}
			return out, err
		}
		out.Ingested = append(out.Ingested, res)
	}
	return out, nil
}

func alertInputFromAlertmanager(hook AlertmanagerWebhook, am AlertmanagerAlert) AlertInput {
	labels := map[string]string{}
	for k, v := range hook.CommonLabels {
		labels[k] = v
	}
	for k, v := range am.Labels {
		labels[k] = v
	}
	annotation := func(k string) string {
		if v := am.Annotations[k]; v != "" {
			return v
		}
		return hook.CommonAnnotations[k]
	}
	in := AlertInput{
		Source:      "alertmanager",
		AlertType:   labels["alertname"],
		Severity:    labels["severity"],
		Title:       annotation("summary"),
		Message:     annotation("description"),
		Labels:      labels,
		Fingerprint: am.Fingerprint,
	}
	if inst := labels["instance"]; inst != "" {
		in.EntityType = "instance"
		in.EntityID = inst
	}
	if in.Severity != "" {
		if _, ok := noc.ParseSeverity(in.Severity); !ok {
			in.Severity = ""
		}
	}
	return in
}

func (s *alertService) resolveByIdentity(dbc dbctx.Context, tenantID uuid.UUID, in AlertInput) (bool, error) {
	var target *types.AlertEvent
	var err error
	if fp := strings.TrimSpace(in.Fingerprint); fp != "" {
		target, err = s.alerts.GetActiveByFingerprint(dbc, tenantID, fp)
		if err != nil {
			return false, err
		}
	}
	if target == nil {
		normalized, _, nerr := normalizeInput(in)
		if nerr != nil {
			return false, nil
		}
		target, err = s.alerts.GetActiveByDedupKey(dbc, tenantID, dedupKeyFor(tenantID, normalized))
		if err != nil {
			return false, err
		}
	}
	if target == nil {
		return false, nil
	}
	if _, err := s.Resolve(dbc, tenantID, target.ID, nil); err != nil {
		if status, _ := apierr.StatusOf(err); status == http.StatusConflict {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *alertService) transition(dbc dbctx.Context, tenantID, alertID uuid.UUID, allowed []string, to string, updates map[string]interface{}) (*types.AlertEvent, error) {
	updates["status"] = to
	ok, err := s.alerts.UpdateFieldsIfStatus(dbc, tenantID, alertID, allowed, updates)
	if err != nil {
		return nil, err
	}
	alert, err := s.alerts.GetByID(dbc, tenantID, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, apierr.NotFound("alert_not_found", "alert %s", alertID)
	}
	if !ok {
		return nil, apierr.Conflict("invalid_transition", "cannot move alert from %s to %s", alert.Status, to)
	}
	if s.notify != nil {
		s.notify.AlertUpdated(dbc.Ctx, tenantID, alert)
	}
	return alert, nil
}

func (s *alertService) Acknowledge(dbc dbctx.Context, tenantID, alertID, userID uuid.UUID) (*types.AlertEvent, error) {
	return s.transition(dbc, tenantID, alertID, []string{noc.AlertStatusOpen}, noc.AlertStatusAcknowledged, map[string]interface{}{
		"acknowledged_at": s.now(),
		"acknowledged_by": userID,
	})
}

func (s *alertService) Resolve(dbc dbctx.Context, tenantID, alertID uuid.UUID, userID *uuid.UUID) (*types.AlertEvent, error) {
	return s.transition(dbc, tenantID, alertID, noc.ActiveAlertStatuses, noc.AlertStatusResolved, map[string]interface{}{
		"resolved_at": s.now(),
		"resolved_by": userID,
	})
}

func (s *alertService) Suppress(dbc dbctx.Context, tenantID, alertID uuid.UUID) (*types.AlertEvent, error) {
	return s.transition(dbc, tenantID, alertID, noc.ActiveAlertStatuses, noc.AlertStatusSuppressed, map[string]interface{}{})
}

func (s *alertService) List(dbc dbctx.Context, tenantID uuid.UUID, f repos.AlertFilter) ([]*types.AlertEvent, int64, error) {
	for i, raw := range f.Severities {
		sev, ok := noc.ParseSeverity(raw)
		if !ok {
			return nil, 0, apierr.Invalid("invalid_severity", "unknown severity %q", raw)
		}
		f.Severities[i] = string(sev)
	}
	for _, st := range f.Statuses {
		switch st {
		case noc.AlertStatusOpen, noc.AlertStatusAcknowledged, noc.AlertStatusResolved, noc.AlertStatusSuppressed:
		default:
			return nil, 0, apierr.Invalid("invalid_status", "unknown alert status %q", st)
		}
	}
	return s.alerts.List(dbc, tenantID, f)
}

func (s *alertService) Get(dbc dbctx.Context, tenantID, alertID uuid.UUID) (*types.AlertEvent, error) {
	alert, err := s.alerts.GetByID(dbc, tenantID, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, apierr.NotFound("alert_not_found", "alert %s", alertID)
	}
	return alert, nil
}
