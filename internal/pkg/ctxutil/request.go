package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData is the authenticated caller attached by the auth middleware.
type RequestData struct {
	TokenString  string
	UserID       uuid.UUID
	TenantID     uuid.UUID
	Role         string
	Capabilities map[string]bool
}

func (rd *RequestData) Can(capability string) bool {
	if rd == nil {
		return false
	}
	return rd.Capabilities[capability]
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
