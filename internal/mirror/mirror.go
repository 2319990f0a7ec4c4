// Package mirror streams a read-only copy of the wrapped terminal's output
// to websocket observers. Observers see exactly the bytes the local
// terminal sees; anything they send is discarded.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"nhooyr.io/websocket"
)

// Hub fans terminal output out to connected observers. Output travels as
// binary frames; resize notices travel as JSON text frames so a viewer can
// size its emulator.
type Hub struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan frame
	token      string
	mu         sync.RWMutex
	running    atomic.Bool
	logger     *slog.Logger
}

type frame struct {
	kind websocket.MessageType
	data []byte
}

type resizeNotice struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

func NewHub(token string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan frame, 256),
		token:      token,
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*client)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			go c.writePump(ctx)
			go c.readPump(ctx)
			h.logger.Info("mirror client connected", "client", c.id, "total", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("mirror client disconnected", "client", c.id, "total", h.ClientCount())

		case f := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- f:
				default:
					h.logger.Debug("mirror client buffer full, dropping frame", "client", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Output broadcasts a chunk of terminal output. Never blocks; when the
// broadcast buffer is full the frame is dropped rather than stalling the
// terminal loop.
func (h *Hub) Output(p []byte) {
	if !h.running.Load() || len(p) == 0 {
		return
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case h.broadcast <- frame{kind: websocket.MessageBinary, data: buf}:
	default:
		h.logger.Debug("mirror broadcast channel full, dropping output")
	}
}

// Resize broadcasts the terminal's new dimensions.
func (h *Hub) Resize(cols, rows uint16) {
	if !h.running.Load() {
		return
	}
	data, err := json.Marshal(resizeNotice{Type: "resize", Cols: cols, Rows: rows})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- frame{kind: websocket.MessageText, data: data}:
	default:
		h.logger.Debug("mirror broadcast channel full, dropping resize")
	}
}

// HandleWebSocket upgrades an observer connection after checking the token.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if h.token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("mirror websocket accept failed", "error", err)
		return
	}

	c := newClient(conn, h)
	select {
	case h.register <- c:
	default:
		h.logger.Warn("mirror hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregisterClient(c *client) {
	if !h.running.Load() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
