package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/metrics"
)

// Message represents a real-time sync notification broadcast to clients.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	IDs    []string       `json:"ids,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// ChangeMessage converts a committed ledger change. Batch changes list every
// id; ID carries the first.
func ChangeMessage(c ledger.Change) Message {
	msg := NewMessage(c.Entity, c.Action, "", nil)
	if len(c.IDs) > 0 {
		msg.ID = c.IDs[0]
	}
	if len(c.IDs) > 1 {
		msg.IDs = c.IDs
	}
	return msg
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.WebsocketClients.Dec()
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client of the tenant adminID, or to all
// clients when adminID is empty.
func (h *Hub) Broadcast(adminID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if adminID != "" && c.adminID != adminID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop the message.
			h.logger.Debug("dropped message for slow client", "type", msg.Type)
		}
	}
}

// Notify is a ledger.Observer that forwards each change to its tenant.
func (h *Hub) Notify(c ledger.Change) {
	h.Broadcast(c.AdminID, ChangeMessage(c))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
