package realtime

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrChannelNotAllowed = errors.New("channel not allowed")

func TenantPrefix(tenantID uuid.UUID) string {
	return "tenant:" + tenantID.String() + ":"
}

// NOCChannel carries every NOC event for a tenant.
func NOCChannel(tenantID uuid.UUID) string {
	return TenantPrefix(tenantID) + "noc"
}

func IncidentChannel(tenantID, incidentID uuid.UUID) string {
	return TenantPrefix(tenantID) + "incident:" + incidentID.String()
}

func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// CanSubscribe allows the client's own user channel and anything under its
// tenant prefix.
func CanSubscribe(c *Client, channel string) bool {
	if c == nil {
		return false
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return false
	}
	if channel == UserChannel(c.UserID) {
		return true
	}
	prefix := TenantPrefix(c.TenantID)
	return strings.HasPrefix(channel, prefix) && len(channel) > len(prefix)
}
