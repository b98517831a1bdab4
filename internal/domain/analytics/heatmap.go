package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// DeviceForViewport buckets a viewport width in CSS pixels.
func DeviceForViewport(width int) string {
	switch {
	case width <= 0:
		return DeviceDesktop
	case width < 768:
		return DeviceMobile
	case width < 1024:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

type HeatmapClick struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_heatmap_lookup,priority:1" json:"tenant_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;column:user_id" json:"user_id,omitempty"`
	Path       string     `gorm:"column:path;not null;index:idx_heatmap_lookup,priority:2" json:"path"`
	Device     string     `gorm:"column:device;not null;index:idx_heatmap_lookup,priority:3" json:"device"`
	XRatio     float64    `gorm:"column:x_ratio;not null" json:"x_ratio"`
	YRatio     float64    `gorm:"column:y_ratio;not null" json:"y_ratio"`
	Selector   string     `gorm:"column:selector" json:"selector,omitempty"`
	OccurredAt time.Time  `gorm:"column:occurred_at;not null;index:idx_heatmap_lookup,priority:4;index" json:"occurred_at"`
}

func (HeatmapClick) TableName() string { return "heatmap_click" }

func (c *HeatmapClick) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
