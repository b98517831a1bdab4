package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/analytics"
	"github.com/yungbote/noc-backend/internal/modules/analytics/experiment"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type ExperimentInput struct {
	Key            string                    `json:"key" binding:"required"`
	Name           string                    `json:"name"`
	Description    string                    `json:"description"`
	TrafficPercent *float64                  `json:"traffic_percent"`
	Variants       []types.ExperimentVariant `json:"variants" binding:"required"`
}

type ExperimentResults struct {
	Experiment *types.Experiment          `json:"experiment"`
	Variants   []experiment.VariantResult `json:"variants"`
}

type ExperimentService interface {
	Create(dbc dbctx.Context, tenantID uuid.UUID, in ExperimentInput) (*types.Experiment, error)
	Start(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error)
	Stop(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, status string) ([]*types.Experiment, error)
	// Assign returns nil without error when the user falls outside the
	// experiment's traffic.
	Assign(dbc dbctx.Context, tenantID uuid.UUID, key string, userID uuid.UUID) (*types.ExperimentAssignment, error)
	Track(dbc dbctx.Context, tenantID uuid.UUID, key string, userID uuid.UUID, kind string, value float64) (*types.ExperimentEvent, error)
	Results(dbc dbctx.Context, tenantID uuid.UUID, key string) (*ExperimentResults, error)
}

type experimentService struct {
	db          *gorm.DB
	log         *logger.Logger
	experiments repos.ExperimentRepo
	assignments repos.ExperimentAssignmentRepo
	events      repos.ExperimentEventRepo
}

func NewExperimentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	experiments repos.ExperimentRepo,
	assignments repos.ExperimentAssignmentRepo,
	events repos.ExperimentEventRepo,
) ExperimentService {
	return &experimentService{
		db:          db,
		log:         baseLog.With("service", "ExperimentService"),
		experiments: experiments,
		assignments: assignments,
		events:      events,
	}
}

func (s *experimentService) Create(dbc dbctx.Context, tenantID uuid.UUID, in ExperimentInput) (*types.Experiment, error) {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return nil, apierr.Invalid("key_required", "experiment key is required")
	}
	traffic := 100.0
	if in.TrafficPercent != nil {
		traffic = *in.TrafficPercent
	}
	if !(traffic >= 0 && traffic <= 100) {
		return nil, apierr.Invalid("invalid_traffic", "traffic_percent must be within [0,100]")
	}
	if err := experiment.ValidateVariants(in.Variants); err != nil {
		return nil, apierr.Invalid("invalid_variants", "%v", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = key
	}
	e := &types.Experiment{
		TenantID:       tenantID,
		Key:            key,
		Name:           name,
		Description:    in.Description,
		Status:         analytics.ExperimentDraft,
		TrafficPercent: traffic,
	}
	e.SetVariants(in.Variants)
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		existing, err := s.experiments.GetByKey(inner, tenantID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return apierr.Conflict("experiment_exists", "experiment %q already exists", key)
		}
		return s.experiments.Create(inner, e)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apierr.Conflict("experiment_exists", "experiment %q already exists", key)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *experimentService) load(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error) {
	e, err := s.experiments.GetByKey(dbc, tenantID, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apierr.NotFound("experiment_not_found", "experiment %q not found", key)
	}
	return e, nil
}

func (s *experimentService) Start(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error) {
	e, err := s.load(dbc, tenantID, key)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case analytics.ExperimentRunning:
		return e, nil
	case analytics.ExperimentStopped:
		return nil, apierr.Conflict("experiment_stopped", "experiment %q was stopped", key)
	}
	now := time.Now().UTC()
	e.Status = analytics.ExperimentRunning
	e.StartedAt = &now
	if err := s.experiments.Save(dbc, e); err != nil {
		return nil, err
	}
	s.log.Info("experiment started", "tenant_id", tenantID, "key", key)
	return e, nil
}

func (s *experimentService) Stop(dbc dbctx.Context, tenantID uuid.UUID, key string) (*types.Experiment, error) {
	e, err := s.load(dbc, tenantID, key)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case analytics.ExperimentStopped:
		return e, nil
	case analytics.ExperimentDraft:
		return nil, apierr.Conflict("experiment_not_running", "experiment %q has not started", key)
	}
	now := time.Now().UTC()
	e.Status = analytics.ExperimentStopped
	e.StoppedAt = &now
	if err := s.experiments.Save(dbc, e); err != nil {
		return nil, err
	}
	s.log.Info("experiment stopped", "tenant_id", tenantID, "key", key)
	return e, nil
}

func (s *experimentService) List(dbc dbctx.Context, tenantID uuid.UUID, status string) ([]*types.Experiment, error) {
	switch status {
	case "", analytics.ExperimentDraft, analytics.ExperimentRunning, analytics.ExperimentStopped:
	default:
		return nil, apierr.Invalid("invalid_status", "unknown experiment status %q", status)
	}
	return s.experiments.List(dbc, tenantID, status)
}

func (s *experimentService) Assign(dbc dbctx.Context, tenantID uuid.UUID, key string, userID uuid.UUID) (*types.ExperimentAssignment, error) {
	e, err := s.load(dbc, tenantID, key)
	if err != nil {
		return nil, err
	}
	if e.Status != analytics.ExperimentRunning {
		return nil, apierr.Conflict("experiment_not_running", "experiment %q is not running", key)
	}
	existing, err := s.assignments.Get(dbc, e.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	bucket := experiment.Bucket(e.Key, userID)
	if !experiment.Enrolled(bucket, e.TrafficPercent) {
		return nil, nil
	}
	variant, ok := experiment.PickVariant(e.Key, userID, e.VariantList())
	if !ok {
		return nil, apierr.Invalid("invalid_variants", "experiment %q has no weighted variants", key)
	}
	a := &types.ExperimentAssignment{
		TenantID:     tenantID,
		ExperimentID: e.ID,
		UserID:       userID,
		Variant:      variant,
		Bucket:       bucket,
		AssignedAt:   time.Now().UTC(),
	}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		return s.assignments.Create(inner, a)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.assignments.Get(dbc, e.ID, userID)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *experimentService) Track(dbc dbctx.Context, tenantID uuid.UUID, key string, userID uuid.UUID, kind string, value float64) (*types.ExperimentEvent, error) {
	switch kind {
	case analytics.ExperimentEventExposure, analytics.ExperimentEventConversion:
	default:
		return nil, apierr.Invalid("invalid_event", "unknown experiment event %q", kind)
	}
	e, err := s.load(dbc, tenantID, key)
	if err != nil {
		return nil, err
	}
	a, err := s.assignments.Get(dbc, e.ID, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apierr.Conflict("not_assigned", "user is not assigned to experiment %q", key)
	}
	ev := &types.ExperimentEvent{
		TenantID:     tenantID,
		ExperimentID: e.ID,
		UserID:       userID,
		Variant:      a.Variant,
		Kind:         kind,
		Value:        value,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.events.Create(dbc, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *experimentService) Results(dbc dbctx.Context, tenantID uuid.UUID, key string) (*ExperimentResults, error) {
	e, err := s.load(dbc, tenantID, key)
	if err != nil {
		return nil, err
	}
	assigned, err := s.assignments.CountByVariant(dbc, e.ID)
	if err != nil {
		return nil, err
	}
	exposed, err := s.events.CountUsersByVariant(dbc, e.ID, analytics.ExperimentEventExposure)
	if err != nil {
		return nil, err
	}
	converted, err := s.events.CountUsersByVariant(dbc, e.ID, analytics.ExperimentEventConversion)
	if err != nil {
		return nil, err
	}
	return &ExperimentResults{
		Experiment: e,
		Variants:   experiment.Results(e.VariantList(), assigned, exposed, converted),
	}, nil
}
