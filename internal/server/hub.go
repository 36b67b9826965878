package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/chatrelay/internal/database"
	"github.com/edgard/chatrelay/internal/rooms"
	"github.com/edgard/chatrelay/internal/router"
)

// Hub manages all WebSocket client connections and room-scoped delivery.
// It implements router.Emitter.
type Hub struct {
	logger   *slog.Logger
	registry *rooms.Registry
	store    database.Store

	routerMu sync.RWMutex
	router   *router.Router

	mu      sync.RWMutex
	clients map[string]*Client
	wg      sync.WaitGroup
}

// NewHub creates a hub. The router is attached separately because it uses
// the hub as its emitter.
func NewHub(logger *slog.Logger, registry *rooms.Registry, store database.Store) *Hub {
	return &Hub{
		logger:   logger.With("component", "hub"),
		registry: registry,
		store:    store,
		clients:  make(map[string]*Client),
	}
}

// AttachRouter wires the message router the hub dispatches inbound chat to.
func (h *Hub) AttachRouter(r *router.Router) {
	h.routerMu.Lock()
	defer h.routerMu.Unlock()
	h.router = r
}

func (h *Hub) messageRouter() *router.Router {
	h.routerMu.RLock()
	defer h.routerMu.RUnlock()
	return h.router
}

// Register adds a client, auto-joins it to the public room, starts its
// pumps, and replays the public history to it.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.registry.Connect(client.id)
	h.logger.Info("Client registered", "conn_id", client.id, "addr", client.addr, "total", total)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	h.replayHistory(context.Background(), client, rooms.PublicRoom)
}

// Unregister removes a client from the hub and all rooms.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	total := len(h.clients)
	h.mu.Unlock()

	close(client.send)
	h.registry.Disconnect(client.id)
	h.logger.Info("Client unregistered", "conn_id", client.id, "addr", client.addr, "total", total)
}

// Emit delivers an event to every connection currently joined to the room.
func (h *Hub) Emit(event string, data any, room string) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode event", "event", event, "room", room, "error", err)
		return
	}

	members := h.registry.Members(room)
	h.logger.Debug("Broadcasting event", "event", event, "room", room, "targets", len(members))

	var failed []*Client
	h.mu.RLock()
	for _, id := range members {
		client, ok := h.clients[id]
		if !ok || client.closed {
			continue
		}
		select {
		case client.send <- payload:
		default:
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range failed {
		h.logger.Warn("Client send buffer full, dropping connection", "conn_id", client.id, "addr", client.addr)
		h.Unregister(client)
	}
}

// emitTo delivers an event to a single connection only.
func (h *Hub) emitTo(client *Client, event string, data any) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.id]; !ok || client.closed {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("Dropping direct event, client send buffer full", "conn_id", client.id, "event", event)
	}
}

// replayHistory sends a room's full ordered history to one client.
func (h *Hub) replayHistory(ctx context.Context, client *Client, room string) {
	messages, err := h.store.HistoryFor(ctx, room)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load history for replay", "room", room, "error", err)
		return
	}
	h.emitTo(client, EventHistory, historyPayload{Room: room, Messages: messages})
}

// Shutdown closes all client connections and waits for their pumps to
// finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Shutting down all client connections...")

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("Error closing client connection", "conn_id", client.id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed", "closed_clients", len(clients))
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
