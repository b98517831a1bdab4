package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Client is one live connection (SSE stream or WebSocket). Channels is owned
// by the hub and only touched under its lock.
type Client struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan Message

	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }
