package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 5 * time.Second
	heartbeatInterval = time.Second
)

// Hub pushes relay status to connected WebSocket clients. Clients get
// a snapshot on connect, on every state change, and on a one second
// heartbeat so dashboards keep uptime counters moving.
type Hub struct {
	logger   *slog.Logger
	source   func() interface{}
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	// writeMu serializes writes; broadcasts arrive from both the
	// heartbeat goroutine and the relay change callback.
	writeMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHub creates a status hub that snapshots via source.
func NewHub(logger *slog.Logger, source func() interface{}) *Hub {
	return &Hub{
		logger: logger,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from the same host; no origin
			// restriction beyond that is enforced.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the heartbeat broadcaster.
func (h *Hub) Start() {
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.Broadcast()
			}
		}
	}()
}

// Stop closes all client connections and stops the heartbeat.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", count),
	)

	// Initial snapshot so the client renders immediately.
	h.send(conn, h.source())

	// Drain reads to detect disconnects; inbound messages are ignored.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes the current snapshot to every client.
func (h *Hub) Broadcast() {
	snapshot := h.source()

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.send(conn, snapshot)
	}
}

func (h *Hub) send(conn *websocket.Conn, snapshot interface{}) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		h.remove(conn)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
