package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/analytics"
	"github.com/yungbote/noc-backend/internal/modules/analytics/recommend"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const (
	defaultRecommendations = 10
	maxRecommendations     = 50
	activeProfileWindow    = 30 * 24 * time.Hour
)

type RecommendationService interface {
	TrackEvent(dbc dbctx.Context, tenantID, userID uuid.UUID, ev types.BehaviorEvent) error
	RecommendContent(dbc dbctx.Context, tenantID, userID uuid.UUID, n int) ([]recommend.Scored, string, error)
	RecommendNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, n int) ([]recommend.Scored, error)
	// Refresh recomputes persisted recommendations for recently active users.
	Refresh(dbc dbctx.Context, tenantID uuid.UUID) (int, error)
	GetContent(dbc dbctx.Context, tenantID, userID uuid.UUID, n int) ([]*types.ContentRecommendation, error)
	GetNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, n int) ([]*types.NavigationRecommendation, error)
}

type recommendationService struct {
	db          *gorm.DB
	log         *logger.Logger
	profiles    repos.BehaviorProfileRepo
	transitions repos.NavigationTransitionRepo
	recs        repos.RecommendationRepo
	heatmap     HeatmapService
	now         func() time.Time
}

func NewRecommendationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profiles repos.BehaviorProfileRepo,
	transitions repos.NavigationTransitionRepo,
	recs repos.RecommendationRepo,
	heatmap HeatmapService,
) RecommendationService {
	return &recommendationService{
		db:          db,
		log:         baseLog.With("service", "RecommendationService"),
		profiles:    profiles,
		transitions: transitions,
		recs:        recs,
		heatmap:     heatmap,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func clampRecommendations(n int) int {
	if n <= 0 {
		return defaultRecommendations
	}
	if n > maxRecommendations {
		return maxRecommendations
	}
	return n
}

func (s *recommendationService) TrackEvent(dbc dbctx.Context, tenantID, userID uuid.UUID, ev types.BehaviorEvent) error {
	ev.Path = strings.TrimSpace(ev.Path)
	ev.ContentID = strings.TrimSpace(ev.ContentID)
	switch ev.Kind {
	case analytics.EventPageView, analytics.EventClick:
		if ev.Path == "" {
			return apierr.Invalid("path_required", "%s requires path", ev.Kind)
		}
	case analytics.EventContentView, analytics.EventContentLike:
		if ev.ContentID == "" {
			return apierr.Invalid("content_required", "%s requires content_id", ev.Kind)
		}
	default:
		return apierr.Invalid("invalid_event", "unknown event kind %q", ev.Kind)
	}
	at := ev.OccurredAt.UTC()
	if ev.OccurredAt.IsZero() {
		at = s.now()
	}

	if ev.Kind == analytics.EventClick && s.heatmap != nil {
		uid := userID
		_, err := s.heatmap.RecordClicks(dbc, tenantID, &uid, []ClickInput{{
			Path:          ev.Path,
			XRatio:        ev.XRatio,
			YRatio:        ev.YRatio,
			ViewportWidth: ev.ViewportWidth,
			Selector:      ev.Selector,
			OccurredAt:    at,
		}})
		if err != nil {
			return err
		}
	}

	return inTx(s.db, dbc, func(inner dbctx.Context) error {
		p, err := s.profiles.EnsureForUpdate(inner, tenantID, userID)
		if err != nil {
			return fmt.Errorf("load behavior profile: %w", err)
		}
		switch ev.Kind {
		case analytics.EventPageView:
			views := p.PageViewMap()
			views[ev.Path]++
			p.SetPageViews(views)
			if ev.SessionID != "" && p.LastSessionID == ev.SessionID && p.LastPath != "" && p.LastPath != ev.Path {
				if err := s.transitions.Increment(inner, tenantID, p.LastPath, ev.Path); err != nil {
					return err
				}
			}
			p.LastPath = ev.Path
			p.LastSessionID = ev.SessionID
		case analytics.EventContentView, analytics.EventContentLike:
			weights := p.ContentWeightMap()
			if ev.Kind == analytics.EventContentLike {
				weights[ev.ContentID] += analytics.WeightLike
			} else {
				weights[ev.ContentID] += analytics.WeightView
			}
			p.SetContentWeights(weights)
		}
		if at.After(p.LastActiveAt) {
			p.LastActiveAt = at
		}
		return s.profiles.Save(inner, p)
	})
}

func (s *recommendationService) activeProfiles(dbc dbctx.Context, tenantID uuid.UUID) ([]recommend.Profile, error) {
	since := s.now().Add(-activeProfileWindow)
	rows, err := s.profiles.ListByTenant(dbc, tenantID, &since)
	if err != nil {
		return nil, err
	}
	out := make([]recommend.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, recommend.Profile{UserID: r.UserID, Weights: r.ContentWeightMap()})
	}
	return out, nil
}

func contentFor(target recommend.Profile, all []recommend.Profile, n int) ([]recommend.Scored, string) {
	neighbors := recommend.Neighbors(target, all, recommend.DefaultNeighbors)
	if len(neighbors) > 0 {
		if scored := recommend.ContentScores(target.Weights, neighbors, n); len(scored) > 0 {
			return scored, analytics.ReasonSimilarUsers
		}
	}
	return recommend.Popular(all, target.Weights, n), analytics.ReasonPopular
}

func (s *recommendationService) RecommendContent(dbc dbctx.Context, tenantID, userID uuid.UUID, n int) ([]recommend.Scored, string, error) {
	n = clampRecommendations(n)
	p, err := s.profiles.GetByUser(dbc, tenantID, userID)
	if err != nil {
		return nil, "", err
	}
	target := recommend.Profile{UserID: userID, Weights: map[string]float64{}}
	if p != nil {
		target.Weights = p.ContentWeightMap()
	}
	all, err := s.activeProfiles(dbc, tenantID)
	if err != nil {
		return nil, "", err
	}
	scored, reason := contentFor(target, all, n)
	return scored, reason, nil
}

func (s *recommendationService) RecommendNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, n int) ([]recommend.Scored, error) {
	fromPath = strings.TrimSpace(fromPath)
	if fromPath == "" {
		return nil, apierr.Invalid("path_required", "from path is required")
	}
	n = clampRecommendations(n)
	rows, err := s.transitions.ListFrom(dbc, tenantID, fromPath)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ToPath] = r.Count
	}
	views := map[string]float64{}
	p, err := s.profiles.GetByUser(dbc, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		views = p.PageViewMap()
	}
	return recommend.Navigation(counts, views, fromPath, n), nil
}

func (s *recommendationService) persistContent(dbc dbctx.Context, tenantID, userID uuid.UUID, scored []recommend.Scored, reason string, at time.Time) ([]*types.ContentRecommendation, error) {
	rows := make([]*types.ContentRecommendation, 0, len(scored))
	for _, sc := range scored {
		rows = append(rows, &types.ContentRecommendation{
			TenantID:    tenantID,
			UserID:      userID,
			ContentID:   sc.Key,
			Score:       sc.Score,
			Reason:      reason,
			GeneratedAt: at,
		})
	}
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		return s.recs.ReplaceContent(inner, tenantID, userID, rows)
	})
	return rows, err
}

func (s *recommendationService) persistNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, scored []recommend.Scored, at time.Time) ([]*types.NavigationRecommendation, error) {
	rows := make([]*types.NavigationRecommendation, 0, len(scored))
	for _, sc := range scored {
		rows = append(rows, &types.NavigationRecommendation{
			TenantID:    tenantID,
			UserID:      userID,
			FromPath:    fromPath,
			ToPath:      sc.Key,
			Score:       sc.Score,
			GeneratedAt: at,
		})
	}
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		return s.recs.ReplaceNavigation(inner, tenantID, userID, fromPath, rows)
	})
	return rows, err
}

func (s *recommendationService) Refresh(dbc dbctx.Context, tenantID uuid.UUID) (int, error) {
	now := s.now()
	since := now.Add(-activeProfileWindow)
	rows, err := s.profiles.ListByTenant(dbc, tenantID, &since)
	if err != nil {
		return 0, err
	}
	all := make([]recommend.Profile, 0, len(rows))
	for _, r := range rows {
		all = append(all, recommend.Profile{UserID: r.UserID, Weights: r.ContentWeightMap()})
	}

	var errs []error
	refreshed := 0
	for i, r := range rows {
		scored, reason := contentFor(all[i], all, defaultRecommendations)
		if _, err := s.persistContent(dbc, tenantID, r.UserID, scored, reason, now); err != nil {
			errs = append(errs, err)
			continue
		}
		if r.LastPath != "" {
			nav, err := s.RecommendNavigation(dbc, tenantID, r.UserID, r.LastPath, defaultRecommendations)
			if err == nil {
				_, err = s.persistNavigation(dbc, tenantID, r.UserID, r.LastPath, nav, now)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
		}
		refreshed++
	}
	if len(errs) > 0 {
		s.log.Warn("recommendation refresh incomplete", "tenant_id", tenantID, "failed", len(errs))
	}
	return refreshed, errors.Join(errs...)
}

func (s *recommendationService) GetContent(dbc dbctx.Context, tenantID, userID uuid.UUID, n int) ([]*types.ContentRecommendation, error) {
	n = clampRecommendations(n)
	rows, err := s.recs.ListContent(dbc, tenantID, userID, n)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}
	scored, reason, err := s.RecommendContent(dbc, tenantID, userID, n)
	if err != nil {
		return nil, err
	}
	return s.persistContent(dbc, tenantID, userID, scored, reason, s.now())
}

func (s *recommendationService) GetNavigation(dbc dbctx.Context, tenantID, userID uuid.UUID, fromPath string, n int) ([]*types.NavigationRecommendation, error) {
	fromPath = strings.TrimSpace(fromPath)
	if fromPath == "" {
		return nil, apierr.Invalid("path_required", "from path is required")
	}
	n = clampRecommendations(n)
	rows, err := s.recs.ListNavigation(dbc, tenantID, userID, fromPath, n)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}
	scored, err := s.RecommendNavigation(dbc, tenantID, userID, fromPath, n)
	if err != nil {
		return nil, err
	}
	return s.persistNavigation(dbc, tenantID, userID, fromPath, scored, s.now())
}
