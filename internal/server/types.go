// Package server implements the connection layer: the WebSocket hub, per
// client read/write pumps, and the HTTP surface (upload, file serving,
// health, index page).
package server

import (
	"encoding/json"
	"strings"

	"github.com/edgard/chatrelay/internal/database"
)

// Event names exchanged over the wire.
const (
	EventMessage      = "message"
	EventCreateRoom   = "create_room"
	EventJoinRoom     = "join_room"
	EventRoomCreated  = "room_created"
	EventRoomJoined   = "room_joined"
	EventRoomError    = "room_error"
	EventTyping       = "typing"
	EventHistory      = "history"
	EventFileUploaded = "file_uploaded"
)

// Envelope is the JSON frame received from clients. Data stays raw until the
// event name selects a payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// RoomRequest is the payload of create_room and join_room events.
type RoomRequest struct {
	Room     string `json:"room"`
	Password string `json:"password"`
}

type roomAck struct {
	Room string `json:"room"`
}

type roomError struct {
	Room  string `json:"room"`
	Error string `json:"error"`
}

type historyPayload struct {
	Room     string             `json:"room"`
	Messages []database.Message `json:"messages"`
}

type fileUploadedPayload struct {
	Room     string `json:"room"`
	Filename string `json:"filename"`
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
