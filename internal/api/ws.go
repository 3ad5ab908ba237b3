package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"sealed-batch-dex/internal/log"
	"sealed-batch-dex/internal/observability"
	"sealed-batch-dex/internal/orchestrator"
)

// Hub fans lifecycle events out to websocket subscribers. Slow clients
// are dropped rather than allowed to stall the broadcast loop.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan orchestrator.Event

	logger  *log.Logger
	metrics *observability.Metrics // optional

	upgrader websocket.Upgrader
}

// clientBuffer is the per-client event backlog before the client is
// considered stuck and disconnected.
const clientBuffer = 16

// NewHub creates a websocket event hub.
func NewHub(logger *log.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]chan orchestrator.Event),
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Phase changes and settlement prices are public data.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Sink returns the EventSink the orchestrator publishes through.
func (h *Hub) Sink() orchestrator.EventSink {
	return func(e orchestrator.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		for conn, ch := range h.clients {
			select {
			case ch <- e:
			default:
				h.dropLocked(conn)
			}
		}
	}
}

// ServeWS upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	ch := make(chan orchestrator.Event, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
	h.logger.Debug("websocket client connected", "clients", n)

	// Reader goroutine: the client sends nothing we care about, but
	// reading is what surfaces the close frame.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for e := range ch {
		if err := conn.WriteJSON(e); err != nil {
			h.remove(conn)
			return
		}
	}
}

// Close disconnects every client. Called on shutdown.
func (h *Hub) Close(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		h.dropLocked(conn)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	h.dropLocked(conn)
	h.mu.Unlock()
}

func (h *Hub) dropLocked(conn *websocket.Conn) {
	ch, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(ch)
	conn.Close()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}
}
