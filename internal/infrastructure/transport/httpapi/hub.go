package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/errs"
	"cacheview/internal/ports"
)

var errHubClosed = errors.New("snapshot hub is closed")

type HubOptions struct {
	WriteTimeout time.Duration
	// ClientBuffer is how many snapshots may queue for one client before it
	// is considered too slow and dropped.
	ClientBuffer int
}

// Hub pushes snapshots to every connected WebSocket viewer.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	buffer       int

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool
}

var _ ports.SnapshotPublisher = (*Hub)(nil)

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewHub(opts HubOptions) *Hub {
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	buffer := opts.ClientBuffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			// Viewers are terminal clients, not browsers bound to an origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		buffer:       buffer,
		clients:      make(map[*hubClient]struct{}),
	}
}

// Publish enqueues s for every client. Clients whose queue is full are disconnected.
func (h *Hub) Publish(ctx context.Context, s snapshot.Snapshot) error {
	if s == nil {
		s = snapshot.Snapshot{}
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return errs.Wrap(err, "encode snapshot")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logging.Warn(logging.WithComponent(ctx, "transport.hub"), "dropping slow viewer", slog.String("client_id", c.id))
			delete(h.clients, c)
			c.close()
		}
	}
	return nil
}

// Serve upgrades the request, sends initial and then every published
// snapshot until the viewer disconnects or the hub closes.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, initial snapshot.Snapshot) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return errHubClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errs.Wrap(err, "upgrade websocket")
	}

	if initial == nil {
		initial = snapshot.Snapshot{}
	}
	payload, err := json.Marshal(initial)
	if err != nil {
		_ = conn.Close()
		return errs.Wrap(err, "encode initial snapshot")
	}

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	c.send <- payload

	if !h.add(c) {
		c.close()
		return errHubClosed
	}

	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "transport.hub"), slog.String("client_id", c.id))
	logging.Info(logCtx, "viewer connected", slog.String("remote", r.RemoteAddr))

	go c.writeLoop(logCtx, h.writeTimeout)
	c.readLoop()

	h.remove(c)
	c.close()
	logging.Info(logCtx, "viewer disconnected")
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every viewer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) add(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// readLoop drains inbound frames so control frames are processed; viewers
// send nothing meaningful.
func (c *hubClient) readLoop() {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubClient) writeLoop(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug(ctx, "write to viewer failed", slog.Any("err", errs.Loggable(err)))
				c.close()
				return
			}
		}
	}
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
}
