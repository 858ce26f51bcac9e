// Package websocket pushes console events to connected dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"admin-console/internal/event"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	bus        event.Bus
	connected  atomic.Int64
	done       chan struct{}

	// greeting, when set, is sent to each client as it connects.
	greeting func() event.Event
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
		done:       make(chan struct{}),
	}
}

// Greet sets the event sent to every newly connected client.
func (h *Hub) Greet(fn func() event.Event) {
	h.greeting = fn
}

// Run fans bus events out to the clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)
			if h.greeting != nil {
				h.deliver(client, h.greeting())
			}
		case client := <-h.unregister:
			h.drop(client)
		case e, ok := <-events:
			if !ok {
				return
			}
			for client := range h.clients {
				h.deliver(client, e)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, e event.Event) {
	message, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "type", e.Type, "error", err)
		return
	}

	select {
	case client.send <- message:
	default:
		slog.Warn("dropping slow websocket client", "remote", client.remote)
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.connected.Add(-1)
	}
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		h.drop(client)
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}
