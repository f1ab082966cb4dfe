// Package ws provides the realtime fan-out layer: a registry of live
// websocket clients grouped by room key, with best-effort publish.
package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Client is the handle for one live connection. Payloads are delivered
// through the buffered Send channel; the connection's write pump drains it.
type Client struct {
	ID   string
	Send chan []byte
}

// NewClient creates a connection handle with a buffered send channel.
func NewClient() *Client {
	return &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, 256),
	}
}

// GroupRegistry is the fan-out contract used by the chat consumer. The Hub
// is the in-process implementation; a distributed pub/sub backbone can be
// substituted without touching callers.
type GroupRegistry interface {
	Join(key string, client *Client)
	Leave(key string, client *Client)
	Publish(key string, payload []byte)
}

// Hub tracks which clients are joined to which group. All operations are
// safe for concurrent use; groups are independent so a single RWMutex over
// the map is sufficient.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
	}
}

// Join registers the client under the group key. Idempotent.
func (h *Hub) Join(key string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[key] == nil {
		h.groups[key] = make(map[*Client]struct{})
	}
	h.groups[key][client] = struct{}{}
}

// Leave removes the client from the group key. Idempotent: leaving a group
// the client never joined is a no-op.
func (h *Hub) Leave(key string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[key]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.groups, key)
	}
}

// Publish delivers the payload to every client currently joined to the
// group. Delivery is best-effort: a client whose send buffer is full is
// skipped so one slow consumer cannot stall the others.
func (h *Hub) Publish(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.groups[key]
	if !ok {
		return
	}

	for client := range members {
		select {
		case client.Send <- payload:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// GroupCount returns the number of clients joined to the group key.
func (h *Hub) GroupCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[key])
}

// GroupKeys returns the currently active group keys.
func (h *Hub) GroupKeys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]string, 0, len(h.groups))
	for k := range h.groups {
		keys = append(keys, k)
	}
	return keys
}
