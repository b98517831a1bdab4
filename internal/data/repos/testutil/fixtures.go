package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/auth"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

func SeedTenant(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string) *types.Tenant {
	tb.Helper()
	t := &types.Tenant{
		ID:   uuid.New(),
		Slug: slug + "-" + uuid.NewString()[:8],
		Name: slug,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tenant: %v", err)
	}
	return t
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, role string) *types.User {
	tb.Helper()
	if role == "" {
		role = auth.RoleOperator
	}
	u := &types.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		DisplayName:  "Test User",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedAlert(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, mut func(a *types.AlertEvent)) *types.AlertEvent {
	tb.Helper()
	now := time.Now().UTC()
	a := &types.AlertEvent{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Source:      "test",
		AlertType:   "device_offline",
		Severity:    noc.SeverityHigh,
		EntityType:  "device",
		EntityID:    "dev-1",
		Title:       "device offline",
		DedupKey:    uuid.NewString(),
		Status:      noc.AlertStatusOpen,
		FirstSeenAt: now,
		LastSeenAt:  now,
		Priority:    "P3",
	}
	if mut != nil {
		mut(a)
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed alert: %v", err)
	}
	return a
}
