package bus

import (
	"context"
	"sync"

	"github.com/yungbote/noc-backend/internal/realtime"
)

// localBus delivers published messages straight to the registered
// forwarders. Used when no redis is configured.
type localBus struct {
	mu       sync.RWMutex
	handlers []func(m realtime.Message)
}

func NewLocalBus() Bus {
	return &localBus{}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error { return nil }
