package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type Event string

const (
	EventConnected          Event = "realtime.connected"
	EventSubscribed         Event = "realtime.subscribed"
	EventUnsubscribed       Event = "realtime.unsubscribed"
	EventError              Event = "realtime.error"
	EventAlertCreated       Event = "alert.created"
	EventAlertUpdated       Event = "alert.updated"
	EventCorrelationUpdated Event = "correlation.updated"
	EventIncidentUpdated    Event = "incident.updated"
	EventPlaybookExecution  Event = "playbook.execution"
	EventMetricsSnapshot    Event = "metrics.snapshot"
	EventJobCreated         Event = "job.created"
	EventJobProgress        Event = "job.progress"
	EventJobFailed          Event = "job.failed"
	EventJobDone            Event = "job.done"
	EventJobCanceled        Event = "job.canceled"
)

type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

// ClientGauge receives +1/-1 as clients connect and disconnect.
type ClientGauge interface {
	RealtimeClients(delta int)
}

const outboundBuffer = 32

type Hub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	gauge         ClientGauge
	clients       map[uuid.UUID]*Client
	subscriptions map[string]map[*Client]bool
	origins       map[string]bool
}

func NewHub(log *logger.Logger, gauge ClientGauge) *Hub {
	return &Hub{
		logger:        log.With("component", "RealtimeHub"),
		gauge:         gauge,
		clients:       make(map[uuid.UUID]*Client),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// NewClient registers a client and joins it to its tenant NOC and user channels.
func (hub *Hub) NewClient(tenantID, userID uuid.UUID) *Client {
	c := &Client{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan Message, outboundBuffer),
		done:     make(chan struct{}),
	}
	hub.mu.Lock()
	hub.clients[c.ID] = c
	hub.mu.Unlock()
	if hub.gauge != nil {
		hub.gauge.RealtimeClients(1)
	}
	if tenantID != uuid.Nil {
		hub.AddChannel(c, NOCChannel(tenantID))
	}
	if userID != uuid.Nil {
		hub.AddChannel(c, UserChannel(userID))
	}
	return c
}

func (hub *Hub) Client(id uuid.UUID) (*Client, bool) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	c, ok := hub.clients[id]
	return c, ok
}

func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

func (hub *Hub) AddChannel(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if client == nil || channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()

	client.Channels[channel] = true
	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true
	hub.logger.Debug("realtime client subscribed", "client_id", client.ID, "channel", channel)
}

// Subscribe is AddChannel restricted to channels the client may read.
func (hub *Hub) Subscribe(client *Client, channel string) error {
	if !CanSubscribe(client, channel) {
		return ErrChannelNotAllowed
	}
	hub.AddChannel(client, channel)
	return nil
}

func (hub *Hub) RemoveChannel(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if client == nil || channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()

	delete(client.Channels, channel)
	if subMap, ok := hub.subscriptions[channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(hub.subscriptions, channel)
		}
	}
	hub.logger.Debug("realtime client unsubscribed", "client_id", client.ID, "channel", channel)
}

func (hub *Hub) ChannelsOf(client *Client) []string {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	out := make([]string, 0, len(client.Channels))
	for ch := range client.Channels {
		out = append(out, ch)
	}
	return out
}

func (hub *Hub) removeClientLocked(client *Client) {
	for ch := range client.Channels {
		if subMap, ok := hub.subscriptions[ch]; ok {
			delete(subMap, client)
			if len(subMap) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	delete(hub.clients, client.ID)
}

// Broadcast never blocks: a client whose buffer is full misses the message.
func (hub *Hub) Broadcast(msg Message) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for c := range hub.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			hub.logger.Warn("dropping realtime message; outbound buffer full", "client_id", c.ID, "event", msg.Event)
		}
	}
}

// CloseClient is idempotent.
func (hub *Hub) CloseClient(client *Client) {
	if client == nil {
		return
	}
	client.closeOnce.Do(func() {
		close(client.done)
		hub.mu.Lock()
		hub.removeClientLocked(client)
		close(client.Outbound)
		hub.mu.Unlock()
		if hub.gauge != nil {
			hub.gauge.RealtimeClients(-1)
		}
	})
}

// ServeSSE streams the client's messages until the request ends or the hub
// drops the client.
func (hub *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	hub.writeSSE(w, Message{Event: EventConnected, Data: map[string]any{"client_id": client.ID}})
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "client_id", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			const pingChunkedSize = 8*1024 - len(": ping \n\n")
			fmt.Fprint(w, ": ping "+strings.Repeat("#", pingChunkedSize)+"\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			hub.writeSSE(w, msg)
			flusher.Flush()
		}
	}
}

func (hub *Hub) writeSSE(w http.ResponseWriter, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		hub.logger.Warn("failed to marshal realtime message", "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, b)
}
