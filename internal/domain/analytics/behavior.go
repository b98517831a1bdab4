package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventPageView    = "page_view"
	EventContentView = "content_view"
	EventContentLike = "content_like"
	EventClick       = "click"
)

// Interaction weights folded into ContentWeights.
const (
	WeightView = 1.0
	WeightLike = 3.0
)

// BehaviorEvent is the tracked-interaction input; it is folded into profiles
// and transitions rather than stored verbatim.
type BehaviorEvent struct {
	Kind          string    `json:"kind" binding:"required,oneof=page_view content_view content_like click"`
	SessionID     string    `json:"session_id"`
	Path          string    `json:"path"`
	ContentID     string    `json:"content_id"`
	XRatio        float64   `json:"x_ratio"`
	YRatio        float64   `json:"y_ratio"`
	ViewportWidth int       `json:"viewport_width"`
	Selector      string    `json:"selector"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type UserBehaviorProfile struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_profile_tenant_user" json:"tenant_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_profile_tenant_user" json:"user_id"`
	PageViews      datatypes.JSON `gorm:"column:page_views;type:jsonb" json:"page_views"`
	ContentWeights datatypes.JSON `gorm:"column:content_weights;type:jsonb" json:"content_weights"`
	LastPath       string         `gorm:"column:last_path" json:"last_path,omitempty"`
	LastSessionID  string         `gorm:"column:last_session_id" json:"last_session_id,omitempty"`
	LastActiveAt   time.Time      `gorm:"column:last_active_at;not null;index" json:"last_active_at"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (UserBehaviorProfile) TableName() string { return "user_behavior_profile" }

func (p *UserBehaviorProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *UserBehaviorProfile) PageViewMap() map[string]float64 {
	return decodeWeights(p.PageViews)
}

func (p *UserBehaviorProfile) ContentWeightMap() map[string]float64 {
	return decodeWeights(p.ContentWeights)
}

func (p *UserBehaviorProfile) SetPageViews(m map[string]float64) {
	p.PageViews = encodeWeights(m)
}

func (p *UserBehaviorProfile) SetContentWeights(m map[string]float64) {
	p.ContentWeights = encodeWeights(m)
}

func decodeWeights(raw datatypes.JSON) map[string]float64 {
	out := map[string]float64{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeWeights(m map[string]float64) datatypes.JSON {
	if m == nil {
		m = map[string]float64{}
	}
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

type NavigationTransition struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_nav_transition,priority:1" json:"tenant_id"`
	FromPath  string    `gorm:"column:from_path;not null;uniqueIndex:idx_nav_transition,priority:2" json:"from_path"`
	ToPath    string    `gorm:"column:to_path;not null;uniqueIndex:idx_nav_transition,priority:3" json:"to_path"`
	Count     int64     `gorm:"column:count;not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (NavigationTransition) TableName() string { return "navigation_transition" }

func (t *NavigationTransition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

const (
	ReasonSimilarUsers = "similar_users"
	ReasonPopular      = "popular"
)

type ContentRecommendation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_content_rec_user,priority:1" json:"tenant_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_content_rec_user,priority:2" json:"user_id"`
	ContentID   string    `gorm:"column:content_id;not null" json:"content_id"`
	Score       float64   `gorm:"column:score;not null" json:"score"`
	Reason      string    `gorm:"column:reason;not null" json:"reason"`
	GeneratedAt time.Time `gorm:"column:generated_at;not null" json:"generated_at"`
}

func (ContentRecommendation) TableName() string { return "content_recommendation" }

func (r *ContentRecommendation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type NavigationRecommendation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_nav_rec_user,priority:1" json:"tenant_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_nav_rec_user,priority:2" json:"user_id"`
	FromPath    string    `gorm:"column:from_path;not null;index:idx_nav_rec_user,priority:3" json:"from_path"`
	ToPath      string    `gorm:"column:to_path;not null" json:"to_path"`
	Score       float64   `gorm:"column:score;not null" json:"score"`
	GeneratedAt time.Time `gorm:"column:generated_at;not null" json:"generated_at"`
}

func (NavigationRecommendation) TableName() string { return "navigation_recommendation" }

func (r *NavigationRecommendation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
