package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/realtime"
	"github.com/yungbote/noc-backend/internal/realtime/bus"
)

// Emitter hands a realtime message to whatever fans it out.
type Emitter interface {
	Emit(ctx context.Context, msg realtime.Message)
}

type HubEmitter struct{ Hub *realtime.Hub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.Message) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

// BusEmitter publishes through the bus; every instance's forwarder delivers
// to its local hub. A failed publish falls back to the local hub so this
// instance's clients still see the event.
type BusEmitter struct {
	Bus      bus.Bus
	Fallback *realtime.Hub
	Log      *logger.Logger
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.Message) {
	if e == nil || e.Bus == nil {
		return
	}
	if err := e.Bus.Publish(ctx, msg); err != nil {
		if e.Log != nil {
			e.Log.Warn("realtime publish failed; broadcasting locally", "event", msg.Event, "error", err)
		}
		if e.Fallback != nil {
			e.Fallback.Broadcast(msg)
		}
	}
}

// NOCNotifier emits NOC events to the tenant channel and, for incidents, the
// incident's own channel.
type NOCNotifier interface {
	AlertCreated(ctx context.Context, tenantID uuid.UUID, alert any)
	AlertUpdated(ctx context.Context, tenantID uuid.UUID, alert any)
	CorrelationUpdated(ctx context.Context, tenantID uuid.UUID, group any)
	IncidentUpdated(ctx context.Context, tenantID, incidentID uuid.UUID, incident any)
	PlaybookExecution(ctx context.Context, tenantID uuid.UUID, exec any)
	MetricsSnapshot(ctx context.Context, tenantID uuid.UUID, snap any)
	Broadcast(ctx context.Context, tenantID uuid.UUID, channel string, data any)
}

type nocNotifier struct {
	emit Emitter
}

func NewNOCNotifier(emit Emitter) NOCNotifier {
	return &nocNotifier{emit: emit}
}

func (n *nocNotifier) send(ctx context.Context, channel string, event realtime.Event, data any) {
	if n == nil || n.emit == nil || channel == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	n.emit.Emit(ctx, realtime.Message{Channel: channel, Event: event, Data: data})
}

func (n *nocNotifier) AlertCreated(ctx context.Context, tenantID uuid.UUID, alert any) {
	n.send(ctx, realtime.NOCChannel(tenantID), realtime.EventAlertCreated, map[string]any{"alert": alert})
}

func (n *nocNotifier) AlertUpdated(ctx context.Context, tenantID uuid.UUID, alert any) {
	n.send(ctx, realtime.NOCChannel(tenantID), realtime.EventAlertUpdated, map[string]any{"alert": alert})
}

func (n *nocNotifier) CorrelationUpdated(ctx context.Context, tenantID uuid.UUID, group any) {
	n.send(ctx, realtime.NOCChannel(tenantID), realtime.EventCorrelationUpdated, map[string]any{"correlation": group})
}

func (n *nocNotifier) IncidentUpdated(ctx context.Context, tenantID, incidentID uuid.UUID, incident any) {
	data := map[string]any{"incident": incident}
	n.send(ctx, realtime.NOCChannel(tenantID), realtime.EventIncidentUpdated, data)
	n.send(ctx, realtime.IncidentChannel(tenantID, incidentID), realtime.EventIncidentUpdated, data)
}

func (n *nocNotifier) PlaybookExecution(ctx context.Context, tenantID uuid.UUID, exec any) {
	n.send(ctx, realtime.NOCChannel(tenantID), realtime.EventPlaybookExecution, map[string]any{"execution": exec})
}

func (n *nocNotifier) MetricsSnapshot(ctx context.Context, tenantID uuid.UUID, snap any) {
	n.send(ctx, realtime.NOCChannel(tenantID), realtime.EventMetricsSnapshot, map[string]any{"snapshot": snap})
}

// Broadcast backs the playbook notify action. Channels outside the tenant
// prefix are rewritten to the tenant NOC channel.
func (n *nocNotifier) Broadcast(ctx context.Context, tenantID uuid.UUID, channel string, data any) {
	prefix := realtime.TenantPrefix(tenantID)
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		channel = realtime.NOCChannel(tenantID)
	}
	n.send(ctx, channel, realtime.EventPlaybookExecution, data)
}
