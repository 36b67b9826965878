// Package router implements the message-routing engine: inbound validation,
// write-then-notify persistence ordering, per-room broadcast, and the bot
// command handoff.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/edgard/chatrelay/internal/database"
	"github.com/edgard/chatrelay/internal/rooms"
)

// botPrefix is the literal command prefix, matched case-insensitively after
// trimming surrounding whitespace.
const botPrefix = "@bot"

// defaultUsername stands in when a sender supplies no display name.
const defaultUsername = "Unknown"

// Inbound is the structured chat payload delivered by the connection layer.
type Inbound struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Room     string `json:"room"`
}

// Emitter delivers an event to every connection currently joined to a room.
type Emitter interface {
	Emit(event string, data any, room string)
}

// Gateway handles a bot invocation scoped to one room. Implementations must
// not block the caller beyond the handoff itself.
type Gateway interface {
	Invoke(ctx context.Context, room, query string)
}

// Router validates and broadcasts chat events to the correct room's members,
// ordering history writes before broadcast.
type Router struct {
	logger  *slog.Logger
	store   database.Store
	emitter Emitter

	gatewayMu sync.RWMutex
	gateway   Gateway

	// locksMu guards the lazily-created per-room mutexes. Each room's
	// append-then-broadcast sequence is serialized under its own lock so a
	// slow room never delays another.
	locksMu   sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// New creates a Router. The bot gateway is attached separately because the
// gateway publishes its replies back through the router.
func New(logger *slog.Logger, store database.Store, emitter Emitter) *Router {
	return &Router{
		logger:    logger.With("component", "router"),
		store:     store,
		emitter:   emitter,
		roomLocks: make(map[string]*sync.Mutex),
	}
}

// AttachGateway wires the bot gateway. Until one is attached, bot commands
// are persisted and broadcast like any other message but not acted on.
func (r *Router) AttachGateway(g Gateway) {
	r.gatewayMu.Lock()
	defer r.gatewayMu.Unlock()
	r.gateway = g
}

// HandleChat processes one inbound structured chat message: it applies
// defaults, persists, broadcasts, and hands bot commands to the gateway.
func (r *Router) HandleChat(ctx context.Context, in Inbound) {
	username := in.Username
	if strings.TrimSpace(username) == "" {
		username = defaultUsername
	}
	room := in.Room
	if room == "" {
		room = rooms.PublicRoom
	}

	msg := &database.Message{
		Room:     room,
		Username: username,
		Body:     in.Message,
		Kind:     database.KindUser,
	}

	if err := r.Publish(ctx, msg); err != nil {
		// Already logged; an unpersisted message is never broadcast.
		return
	}

	if query, ok := botQuery(in.Message); ok {
		r.logger.InfoContext(ctx, "Bot command detected", "room", room, "query_len", len(query))
		r.dispatchBot(ctx, room, query)
	}
}

// RecordFileMessage records a completed file upload as a chat message,
// persisted and broadcast like user input. The body is the sanitized
// filename; an empty room defaults to public.
func (r *Router) RecordFileMessage(ctx context.Context, room, filename, username string) error {
	if room == "" {
		room = rooms.PublicRoom
	}
	if strings.TrimSpace(username) == "" {
		username = defaultUsername
	}

	msg := &database.Message{
		Room:     room,
		Username: username,
		Body:     filename,
		Kind:     database.KindFile,
	}
	return r.Publish(ctx, msg)
}

// Publish appends the message to the room's history and then broadcasts it
// to the room's members. The store write completes before any member sees
// the message, and the whole sequence is serialized per room.
func (r *Router) Publish(ctx context.Context, msg *database.Message) error {
	lock := r.roomLock(msg.Room)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.SaveMessage(ctx, msg); err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist message, dropping broadcast",
			"room", msg.Room, "kind", msg.Kind, "error", err)
		return err
	}

	r.emitter.Emit("message", msg, msg.Room)
	return nil
}

func (r *Router) dispatchBot(ctx context.Context, room, query string) {
	r.gatewayMu.RLock()
	g := r.gateway
	r.gatewayMu.RUnlock()

	if g == nil {
		r.logger.WarnContext(ctx, "Bot command received but no gateway attached", "room", room)
		return
	}

	// The invocation outlives the inbound event that triggered it.
	go g.Invoke(context.WithoutCancel(ctx), room, query)
}

func (r *Router) roomLock(room string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.roomLocks[room]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[room] = lock
	}
	return lock
}

// botQuery reports whether the message is a bot command and returns the
// trimmed query following the prefix.
func botQuery(message string) (string, bool) {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) < len(botPrefix) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(botPrefix)], botPrefix) {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(botPrefix):]), true
}
