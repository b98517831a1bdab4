package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/analytics"
	"github.com/yungbote/noc-backend/internal/modules/analytics/heatmap"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const (
	maxClicksPerBatch = 1000
	topSelectorLimit  = 10
)

type ClickInput struct {
	Path          string    `json:"path" binding:"required"`
	XRatio        float64   `json:"x_ratio"`
	YRatio        float64   `json:"y_ratio"`
	ViewportWidth int       `json:"viewport_width"`
	Selector      string    `json:"selector"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type HeatmapRequest struct {
	Path   string
	Device string
	Since  *time.Time
	Until  *time.Time
	Width  int
	Height int
}

type HeatmapResult struct {
	Path         string                `json:"path"`
	Device       string                `json:"device,omitempty"`
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	Total        int64                 `json:"total"`
	Cells        []heatmap.Cell        `json:"cells"`
	TopSelectors []repos.SelectorCount `json:"top_selectors"`
}

type HeatmapService interface {
	RecordClicks(dbc dbctx.Context, tenantID uuid.UUID, userID *uuid.UUID, clicks []ClickInput) (int, error)
	Aggregate(dbc dbctx.Context, tenantID uuid.UUID, req HeatmapRequest) (*HeatmapResult, error)
}

type heatmapService struct {
	log    *logger.Logger
	clicks repos.HeatmapRepo
}

func NewHeatmapService(baseLog *logger.Logger, clicks repos.HeatmapRepo) HeatmapService {
	return &heatmapService{log: baseLog.With("service", "HeatmapService"), clicks: clicks}
}

func (s *heatmapService) RecordClicks(dbc dbctx.Context, tenantID uuid.UUID, userID *uuid.UUID, clicks []ClickInput) (int, error) {
	if len(clicks) == 0 {
		return 0, nil
	}
	if len(clicks) > maxClicksPerBatch {
		return 0, apierr.Invalid("batch_too_large", "at most %d clicks per request", maxClicksPerBatch)
	}
	now := time.Now().UTC()
	rows := make([]*types.HeatmapClick, 0, len(clicks))
	for i, c := range clicks {
		path := strings.TrimSpace(c.Path)
		if path == "" {
			return 0, apierr.Invalid("invalid_click", "click %d: path required", i)
		}
		if err := heatmap.ValidatePoint(heatmap.Point{X: c.XRatio, Y: c.YRatio}); err != nil {
			return 0, apierr.Invalid("invalid_click", "click %d: %v", i, err)
		}
		at := c.OccurredAt.UTC()
		if c.OccurredAt.IsZero() {
			at = now
		}
		rows = append(rows, &types.HeatmapClick{
			TenantID:   tenantID,
			UserID:     userID,
			Path:       path,
			Device:     analytics.DeviceForViewport(c.ViewportWidth),
			XRatio:     c.XRatio,
			YRatio:     c.YRatio,
			Selector:   strings.TrimSpace(c.Selector),
			OccurredAt: at,
		})
	}
	if err := s.clicks.CreateBatch(dbc, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *heatmapService) Aggregate(dbc dbctx.Context, tenantID uuid.UUID, req HeatmapRequest) (*HeatmapResult, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, apierr.Invalid("path_required", "path is required")
	}
	switch req.Device {
	case "", analytics.DeviceMobile, analytics.DeviceTablet, analytics.DeviceDesktop:
	default:
		return nil, apierr.Invalid("invalid_device", "unknown device %q", req.Device)
	}
	if req.Since != nil && req.Until != nil && req.Until.Before(*req.Since) {
		return nil, apierr.Invalid("invalid_range", "until must not be before since")
	}
	q := repos.HeatmapQuery{Path: req.Path, Device: req.Device, Since: req.Since, Until: req.Until}
	rows, err := s.clicks.ListPoints(dbc, tenantID, q)
	if err != nil {
		return nil, err
	}
	points := make([]heatmap.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, heatmap.Point{X: r.XRatio, Y: r.YRatio})
	}
	selectors, err := s.clicks.TopSelectors(dbc, tenantID, q, topSelectorLimit)
	if err != nil {
		return nil, err
	}
	if selectors == nil {
		selectors = []repos.SelectorCount{}
	}
	return &HeatmapResult{
		Path:         req.Path,
		Device:       req.Device,
		Width:        heatmap.GridSize(req.Width, heatmap.DefaultGridWidth),
		Height:       heatmap.GridSize(req.Height, heatmap.DefaultGridHeight),
		Total:        int64(len(points)),
		Cells:        heatmap.Grid(points, req.Width, req.Height),
		TopSelectors: selectors,
	}, nil
}
