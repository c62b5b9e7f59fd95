package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/metrics"
)

const MessageTypeChanged = "changed"

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var _ database.ChangeNotifier = (*Hub)(nil)

// Hub fans store change events out to every connected websocket client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	origin     string
}

// NewHub creates a hub. allowedOrigin "*" or "" accepts any origin.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origin:     allowedOrigin,
	}
}

// Notify queues a change event. It never blocks the writer that made the
// change; events are dropped when the queue is full.
func (h *Hub) Notify(change database.Change) {
	data, err := json.Marshal(Message{Type: MessageTypeChanged, Data: change})
	if err != nil {
		slog.Error("Failed to encode change event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		slog.Warn("Realtime broadcast queue full, dropping event", "op", change.Op, "id", change.ID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.RealtimeClients.Set(float64(count))
			slog.Debug("Realtime client connected", "clients", count)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slog.Warn("Realtime client too slow, disconnecting")
					delete(h.clients, client)
					close(client.send)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.RealtimeClients.Set(float64(count))
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.RealtimeClients.Set(float64(count))
	slog.Debug("Realtime client disconnected", "clients", count)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	metrics.RealtimeClients.Set(0)
	slog.Info("Realtime hub stopped")
}
