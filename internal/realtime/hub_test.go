package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type countingGauge struct{ n int }

func (g *countingGauge) RealtimeClients(delta int) { g.n += delta }

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func TestHubAutoJoinsTenantAndUserChannels(t *testing.T) {
	hub := NewHub(logger.Nop(), nil)
	tenantID, userID := uuid.New(), uuid.New()
	c := hub.NewClient(tenantID, userID)

	hub.Broadcast(Message{Channel: NOCChannel(tenantID), Event: EventAlertCreated})
	hub.Broadcast(Message{Channel: UserChannel(userID), Event: EventJobDone})
	hub.Broadcast(Message{Channel: NOCChannel(uuid.New()), Event: EventAlertUpdated})

	if got := recvMessage(t, c.Outbound, time.Second); got.Event != EventAlertCreated {
		t.Fatalf("first: want=%s got=%s", EventAlertCreated, got.Event)
	}
	if got := recvMessage(t, c.Outbound, time.Second); got.Event != EventJobDone {
		t.Fatalf("second: want=%s got=%s", EventJobDone, got.Event)
	}
	select {
	case m := <-c.Outbound:
		t.Fatalf("other tenant's message leaked: %+v", m)
	default:
	}
}

func TestHubReconnectAndOrdering(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(logger.Nop(), gauge)
	tenantID := uuid.New()
	channel := IncidentChannel(tenantID, uuid.New())

	clientA := hub.NewClient(tenantID, uuid.New())
	if err := hub.Subscribe(clientA, channel); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	hub.Broadcast(Message{Channel: channel, Event: EventIncidentUpdated, Data: map[string]any{"seq": 1}})
	hub.Broadcast(Message{Channel: channel, Event: EventPlaybookExecution, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != EventIncidentUpdated {
		t.Fatalf("first event: want=%s got=%s", EventIncidentUpdated, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != EventPlaybookExecution {
		t.Fatalf("second event: want=%s got=%s", EventPlaybookExecution, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}
	if gauge.n != 0 {
		t.Fatalf("gauge after close: want=0 got=%d", gauge.n)
	}
	if _, ok := hub.Client(clientA.ID); ok {
		t.Fatalf("closed client still registered")
	}

	clientB := hub.NewClient(tenantID, uuid.New())
	_ = hub.Subscribe(clientB, channel)
	hub.Broadcast(Message{Channel: channel, Event: EventIncidentUpdated, Data: map[string]any{"seq": 3}})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != EventIncidentUpdated {
		t.Fatalf("reconnect event: want=%s got=%s", EventIncidentUpdated, got.Event)
	}
}

func TestHubSubscribeRejectsForeignChannels(t *testing.T) {
	hub := NewHub(logger.Nop(), nil)
	c := hub.NewClient(uuid.New(), uuid.New())
	for _, ch := range []string{
		NOCChannel(uuid.New()),
		UserChannel(uuid.New()),
		TenantPrefix(c.TenantID),
		"global",
		"",
	} {
		if err := hub.Subscribe(c, ch); err != ErrChannelNotAllowed {
			t.Fatalf("Subscribe(%q): want=%v got=%v", ch, ErrChannelNotAllowed, err)
		}
	}
	if err := hub.Subscribe(c, IncidentChannel(c.TenantID, uuid.New())); err != nil {
		t.Fatalf("own tenant incident channel: %v", err)
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.Nop(), nil)
	tenantID := uuid.New()
	c := hub.NewClient(tenantID, uuid.Nil)
	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(Message{Channel: NOCChannel(tenantID), Event: EventMetricsSnapshot})
	}
	if got := len(c.Outbound); got != outboundBuffer {
		t.Fatalf("buffered: want=%d got=%d", outboundBuffer, got)
	}
}

func TestServeWSSubscribeAndDeliver(t *testing.T) {
	hub := NewHub(logger.Nop(), nil)
	tenantID := uuid.New()
	client := hub.NewClient(tenantID, uuid.New())
	incident := IncidentChannel(tenantID, uuid.New())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, client)
		hub.CloseClient(client)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Event != EventConnected {
		t.Fatalf("hello: want=%s got=%s err=%v", EventConnected, hello.Event, err)
	}
	if err := conn.WriteJSON(Frame{Action: "subscribe", Channel: incident}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ack Message
	if err := conn.ReadJSON(&ack); err != nil || ack.Event != EventSubscribed {
		t.Fatalf("ack: want=%s got=%s err=%v", EventSubscribed, ack.Event, err)
	}

	hub.Broadcast(Message{Channel: incident, Event: EventIncidentUpdated})
	var got Message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Event != EventIncidentUpdated || got.Channel != incident {
		t.Fatalf("delivered: want=%s on %s got=%s on %s", EventIncidentUpdated, incident, got.Event, got.Channel)
	}

	if err := conn.WriteJSON(Frame{Action: "subscribe", Channel: NOCChannel(uuid.New())}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var denied Message
	if err := conn.ReadJSON(&denied); err != nil || denied.Event != EventError {
		t.Fatalf("denied: want=%s got=%s err=%v", EventError, denied.Event, err)
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(logger.Nop(), nil)
	hub.AllowOrigins(" https://NOC.example.com/ ", "")
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://api.internal:8080", true},
		{"https://noc.example.com", true},
		{"https://evil.example.com", false},
		{"null", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "http://api.internal:8080/ws/noc", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := hub.checkOrigin(r); got != tc.want {
			t.Fatalf("origin %q: want=%v got=%v", tc.origin, tc.want, got)
		}
	}

	hub.AllowOrigins("*")
	r := httptest.NewRequest(http.MethodGet, "http://api.internal:8080/ws/noc", nil)
	r.Header.Set("Origin", "https://anything.example.org")
	if !hub.checkOrigin(r) {
		t.Fatalf("wildcard: want allowed")
	}
}

func TestServeWSRefusesForeignOrigin(t *testing.T) {
	hub := NewHub(logger.Nop(), nil)
	hub.AllowOrigins("https://noc.example.com")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := hub.NewClient(uuid.New(), uuid.New())
		_ = hub.ServeWS(w, r, client)
		hub.CloseClient(client)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	if err == nil {
		t.Fatalf("foreign origin: want handshake refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin: want=403 got=%v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://noc.example.com"}})
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Event != EventConnected {
		t.Fatalf("hello: want=%s got=%s err=%v", EventConnected, hello.Event, err)
	}
}
