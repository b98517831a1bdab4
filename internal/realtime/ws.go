package realtime

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 30 * time.Second
	wsMaxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16 * 1024,
}

// AllowOrigins sets the browser origins allowed to open a socket in addition
// to the server's own. A single "*" allows any origin.
func (hub *Hub) AllowOrigins(origins ...string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o != "" {
			allowed[o] = true
		}
	}
	hub.mu.Lock()
	hub.origins = allowed
	hub.mu.Unlock()
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-host origins, and the configured allow-list.
func (hub *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.origins["*"] || hub.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
}

// Frame is an inbound WebSocket control message.
type Frame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// ServeWS upgrades the request and pumps the client's messages over the
// socket. It returns once either side hangs up; the caller closes the client.
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request, client *Client) error {
	up := upgrader
	up.CheckOrigin = hub.checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Debug("WebSocket upgrade refused", "origin", r.Header.Get("Origin"), "error", err)
		return err
	}
	defer conn.Close()

	control := make(chan Message, 8)
	quit := make(chan struct{})
	go hub.readPump(conn, client, control, quit)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if err := writeFrame(conn, Message{Event: EventConnected, Data: map[string]any{"client_id": client.ID}}); err != nil {
		return nil
	}
	for {
		select {
		case <-quit:
			return nil
		case <-client.done:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return nil
		case msg := <-control:
			if err := writeFrame(conn, msg); err != nil {
				return nil
			}
		case msg, ok := <-client.Outbound:
			if !ok {
				return nil
			}
			if err := writeFrame(conn, msg); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func (hub *Hub) readPump(conn *websocket.Conn, client *Client, control chan<- Message, quit chan<- struct{}) {
	defer close(quit)
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Debug("websocket read failed", "client_id", client.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		reply := hub.handleFrame(client, f)
		select {
		case control <- reply:
		default:
		}
	}
}

func (hub *Hub) handleFrame(client *Client, f Frame) Message {
	switch f.Action {
	case "subscribe":
		if err := hub.Subscribe(client, f.Channel); err != nil {
			return Message{Channel: f.Channel, Event: EventError, Data: map[string]string{"error": err.Error()}}
		}
		return Message{Channel: f.Channel, Event: EventSubscribed}
	case "unsubscribe":
		hub.RemoveChannel(client, f.Channel)
		return Message{Channel: f.Channel, Event: EventUnsubscribed}
	default:
		return Message{Channel: f.Channel, Event: EventError, Data: map[string]string{"error": "unknown action"}}
	}
}

func writeFrame(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
