// Package rooms tracks room existence, credentials, and membership, and
// enforces the join/create rules of the relay.
package rooms

import (
	"errors"
	"log/slog"
	"sync"
)

// PublicRoom is the reserved, always-existing room. It requires no password
// and every connection implicitly belongs to it.
const PublicRoom = "public"

// Room errors reported back to the single requesting connection. They are
// never fatal and never broadcast.
var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("wrong password")
)

// Registry holds the room-name-to-password map and per-room membership.
// All state is in-memory and lives for the process lifetime; rooms are never
// deleted or expired.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger

	// passwords holds credentials for non-public rooms. A room's password is
	// immutable once created.
	passwords map[string]string

	// members maps non-public room names to the set of joined connections.
	members map[string]map[string]struct{}

	// current maps a connection to its single non-public room, if any.
	current map[string]string

	// connections is the set of all live connections; they all implicitly
	// belong to the public room.
	connections map[string]struct{}
}

// NewRegistry creates an empty registry containing only the public room.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:      logger.With("component", "rooms"),
		passwords:   make(map[string]string),
		members:     make(map[string]map[string]struct{}),
		current:     make(map[string]string),
		connections: make(map[string]struct{}),
	}
}

// Connect registers a new connection and auto-joins it to the public room.
func (r *Registry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[connID] = struct{}{}
	r.logger.Debug("Connection joined public room", "conn_id", connID, "total", len(r.connections))
}

// Disconnect removes a connection from all rooms.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveCurrentLocked(connID)
	delete(r.connections, connID)
	r.logger.Debug("Connection removed", "conn_id", connID, "total", len(r.connections))
}

// Create registers a new password-gated room and joins the requesting
// connection to it. Fails with ErrRoomExists if the name is "public" or
// already registered.
func (r *Registry) Create(connID, name, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == PublicRoom {
		return ErrRoomExists
	}
	if _, exists := r.passwords[name]; exists {
		return ErrRoomExists
	}

	r.passwords[name] = password
	r.members[name] = make(map[string]struct{})
	r.joinLocked(connID, name)

	r.logger.Info("Room created", "room", name, "conn_id", connID)
	return nil
}

// Join adds the connection to an existing room, moving it out of any
// previously joined non-public room. The public room is always joinable
// without a password.
func (r *Registry) Join(connID, name, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == PublicRoom {
		r.leaveCurrentLocked(connID)
		r.logger.Info("Connection returned to public room", "conn_id", connID)
		return nil
	}

	stored, exists := r.passwords[name]
	if !exists {
		return ErrRoomNotFound
	}
	if stored != password {
		return ErrWrongPassword
	}

	r.joinLocked(connID, name)
	r.logger.Info("Connection joined room", "room", name, "conn_id", connID)
	return nil
}

// Members returns a snapshot of the connections currently in the room. For
// the public room this is every live connection.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room == PublicRoom {
		out := make([]string, 0, len(r.connections))
		for id := range r.connections {
			out = append(out, id)
		}
		return out
	}

	set := r.members[room]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Exists reports whether the room is registered. The public room always
// exists.
func (r *Registry) Exists(room string) bool {
	if room == PublicRoom {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.passwords[room]
	return ok
}

// RoomOf returns the connection's current non-public room, or the public
// room if it has none.
func (r *Registry) RoomOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room, ok := r.current[connID]; ok && room != "" {
		return room
	}
	return PublicRoom
}

func (r *Registry) joinLocked(connID, name string) {
	r.leaveCurrentLocked(connID)
	if r.members[name] == nil {
		r.members[name] = make(map[string]struct{})
	}
	r.members[name][connID] = struct{}{}
	r.current[connID] = name
}

func (r *Registry) leaveCurrentLocked(connID string) {
	if room, ok := r.current[connID]; ok && room != "" {
		delete(r.members[room], connID)
	}
	delete(r.current, connID)
}
