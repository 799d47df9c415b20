// Package relay carries background-channel payloads to non-browser clients
// over a websocket. The Hub is the server side; Source is the client side.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
)

const (
	defaultClientBuffer = 256
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	enqueueTimeout      = 5 * time.Second
)

var ErrHubStopped = errors.New("relay: hub is not running")

// Hub fans out relayed payloads to every connected websocket client.
type Hub struct {
	logger         logger.Logger
	originPatterns []string
	pingInterval   time.Duration
	clientBuffer   int

	mu         sync.RWMutex
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
}

type client struct {
	id   string
	send chan []byte
}

var _ broadcaster.Broadcaster = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOriginPatterns sets the accepted cross-origin hosts.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) {
		h.originPatterns = append([]string(nil), patterns...)
	}
}

// WithPingInterval overrides the keepalive ping period.
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithClientBuffer sets the per-client send queue depth.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.clientBuffer = n
		}
	}
}

// NewHub constructs a hub. Call Run before serving connections.
func NewHub(l logger.Logger, opts ...HubOption) *Hub {
	if l == nil {
		l = &logger.Nop{}
	}
	h := &Hub{
		logger:       l,
		pingInterval: defaultPingInterval,
		clientBuffer: defaultClientBuffer,
		clients:      make(map[string]*client),
		register:     make(chan *client),
		unregister:   make(chan *client),
		broadcast:    make(chan []byte, 256),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Run owns the client registry until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, c := range h.clients {
			close(c.send)
			delete(h.clients, id)
		}
		h.mu.Unlock()
		close(h.stopped)
		h.logger.Info("relay hub stopped")
	}()
	h.logger.Info("relay hub running")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("relay client registered", logger.F("client", c.id), logger.F("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				h.logger.Debug("relay client unregistered", logger.F("client", c.id))
			}
			h.mu.Unlock()

		case frame := <-h.broadcast:
			recipients := 0
			h.mu.Lock()
			for id, c := range h.clients {
				select {
				case c.send <- frame:
					recipients++
				default:
					h.logger.Warn("dropping relay client: send buffer full", logger.F("client", id))
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("relay broadcast", logger.F("recipients", recipients))

		case <-h.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops Run.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Relay queues p for every connected client.
func (h *Hub) Relay(ctx context.Context, p domain.Payload) error {
	frame, err := json.Marshal(p)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- frame:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(enqueueTimeout):
		return context.DeadlineExceeded
	}
}

// Broadcast relays events that carry a payload. Other events are ignored so the
// hub can sit in a fanout next to toast sinks.
func (h *Hub) Broadcast(ctx context.Context, event broadcaster.Event) error {
	switch p := event.Payload.(type) {
	case domain.Payload:
		return h.Relay(ctx, p)
	case *domain.Payload:
		if p == nil {
			return nil
		}
		return h.Relay(ctx, *p)
	default:
		return nil
	}
}

// ServeHTTP upgrades the request and streams relayed payloads as text frames.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("relay upgrade failed", logger.F("error", err))
		return
	}
	c := &client{id: uuid.NewString(), send: make(chan []byte, h.clientBuffer)}

	select {
	case h.register <- c:
	case <-h.stopped:
		_ = conn.Close(websocket.StatusGoingAway, "relay stopped")
		return
	case <-r.Context().Done():
		_ = conn.Close(websocket.StatusGoingAway, "")
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopped:
		}
	}()

	// Clients never send frames; CloseRead discards them and reports disconnects.
	ctx := conn.CloseRead(r.Context())
	if err := h.writePump(ctx, conn, c); err != nil && websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
		h.logger.Debug("relay client write failed", logger.F("client", c.id), logger.F("error", err))
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, c *client) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return ctx.Err()
		case frame, ok := <-c.send:
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "relay closed")
			}
			writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
