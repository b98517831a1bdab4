package bus

import (
	"context"

	"github.com/yungbote/noc-backend/internal/realtime"
)

// Bus fans realtime messages out across instances. Every instance runs a
// forwarder that feeds received messages into its local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}
