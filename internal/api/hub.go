package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/observability"
	"options-data-lab/internal/storage"
)

// HubConfig configures the change-log event hub.
type HubConfig struct {
	// PollInterval is how often the change log is checked for new entries.
	PollInterval time.Duration
	// PingInterval is the interval for ping frames to connected clients.
	PingInterval time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// SendBuffer is the per-client queue length; slow clients are dropped.
	SendBuffer int
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PollInterval: 30 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Hub pushes new change-log entries to websocket clients.
type Hub struct {
	changeLog storage.ChangeLogStore
	config    HubConfig
	logger    *zap.SugaredLogger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	lastID  int64
	since   time.Time
}

type client struct {
	conn *websocket.Conn
	send chan *domain.ChangeLogEntry
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub that starts reporting entries logged after start.
func NewHub(changeLog storage.ChangeLogStore, config *HubConfig, start time.Time, logger *zap.SugaredLogger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		changeLog: changeLog,
		config:    cfg,
		logger:    logger,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:   make(map[*client]struct{}),
		since:     start,
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan *domain.ChangeLogEntry, h.config.SendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetWebsocketClients(n)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop discards client frames and unregisters on close.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetWebsocketClients(n)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run polls the change log until ctx is done, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
			if err := h.Poll(ctx); err != nil {
				h.logger.Warnw("change log poll failed", "error", err)
			}
		}
	}
}

// Poll fetches entries newer than the last one seen and broadcasts them.
func (h *Hub) Poll(ctx context.Context) error {
	h.mu.Lock()
	since, lastID := h.since, h.lastID
	h.mu.Unlock()

	entries, err := h.changeLog.GetSince(ctx, since)
	if err != nil {
		return err
	}

	var fresh []*domain.ChangeLogEntry
	for _, e := range entries {
		if e.ID > lastID {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	last := fresh[len(fresh)-1]
	h.lastID = last.ID
	h.since = last.Timestamp
	for c := range h.clients {
		for _, e := range fresh {
			select {
			case c.send <- e:
			default:
				// Slow client: drop it rather than block the poller.
				delete(h.clients, c)
				c.close()
			}
			if _, ok := h.clients[c]; !ok {
				break
			}
		}
	}
	return nil
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	observability.SetWebsocketClients(0)
}
