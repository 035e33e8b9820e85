// Package ws pushes periodic snapshots to websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames
	maxMessageSize = 4 * 1024
)

// Frame is one message sent to a subscriber
type Frame struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotFunc produces the payload pushed on every tick
type SnapshotFunc func(ctx context.Context) (any, error)

type client struct {
	conn     *websocket.Conn
	tenantID int64
}

// Hub tracks live subscribers
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*client]struct{}
	log      *logger.Logger
}

// NewHub creates a hub. allowedOrigins empty or containing "*" accepts any origin.
func NewHub(log *logger.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ActiveConnections returns the number of open subscriptions
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Serve upgrades the request and pushes a snapshot immediately and then
// every interval until the peer goes away. It blocks for the life of the
// connection.
func (h *Hub) Serve(c *gin.Context, tenantID int64, interval time.Duration, snapshot SnapshotFunc) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	log := logger.FromGin(c)
	cl := &client{conn: conn, tenantID: tenantID}
	h.register(cl)
	log.Info("Realtime subscriber connected", "active", h.ActiveConnections())

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer func() {
		cancel()
		h.unregister(cl)
		conn.Close()
		log.Info("Realtime subscriber disconnected")
	}()

	go readPump(conn, cancel)
	writePump(ctx, conn, interval, snapshot, log)
}

// readPump discards client frames and keeps the read deadline alive on pong.
// Any read error ends the subscription.
func readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, interval time.Duration, snapshot SnapshotFunc, log *logger.Logger) {
	push := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		push.Stop()
		ping.Stop()
	}()

	if err := send(ctx, conn, snapshot, log); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-push.C:
			if err := send(ctx, conn, snapshot, log); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// send writes one frame. A snapshot failure is reported to the subscriber
// as an error frame and does not close the stream.
func send(ctx context.Context, conn *websocket.Conn, snapshot SnapshotFunc, log *logger.Logger) error {
	frame := Frame{Type: "metrics", Timestamp: time.Now().UTC()}
	data, err := snapshot(ctx)
	if err != nil {
		log.Warn("Realtime snapshot failed", "error", err)
		frame.Type = "error"
		frame.Error = "metrics temporarily unavailable"
	} else {
		frame.Data = data
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
