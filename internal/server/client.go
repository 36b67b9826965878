package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgard/chatrelay/internal/rooms"
	"github.com/edgard/chatrelay/internal/router"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client represents one WebSocket connection: its identity, send queue, and
// pump state.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *slog.Logger
	addr   string
	closed bool
}

// NewClient creates a client for an upgraded connection. The send channel is
// buffered so broadcasts don't block on slow readers.
func NewClient(id string, conn *websocket.Conn, hub *Hub, addr string, maxMessageSize int64) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
		logger: hub.logger.With("conn_id", id, "addr", addr),
		addr:   addr,
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the error and reports whether the read loop should
// stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Message exceeded maximum size, closing connection")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug("Client disconnected", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug("Connection closed", "error", err)
	default:
		c.logger.Warn("WebSocket read error", "error", err)
	}
	return true
}

// dispatch decodes one inbound frame and routes it by event name. Malformed
// frames are logged and silently dropped; no error reaches the client.
func (c *Client) dispatch(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("Dropping malformed frame", "error", err)
		return
	}

	switch env.Event {
	case EventMessage:
		var in router.Inbound
		if err := json.Unmarshal(env.Data, &in); err != nil {
			c.logger.Debug("Dropping malformed chat payload", "error", err)
			return
		}
		if r := c.hub.messageRouter(); r != nil {
			r.HandleChat(ctx, in)
		}

	case EventCreateRoom:
		c.handleRoomRequest(ctx, env.Data, EventRoomCreated, c.hub.registry.Create)

	case EventJoinRoom:
		c.handleRoomRequest(ctx, env.Data, EventRoomJoined, c.hub.registry.Join)

	default:
		c.logger.Debug("Dropping frame with unknown event", "event", env.Event)
	}
}

// handleRoomRequest runs a registry operation and reports the outcome to the
// requesting connection only. Success replays the room's history.
func (c *Client) handleRoomRequest(ctx context.Context, data json.RawMessage, ackEvent string, op func(connID, name, password string) error) {
	var req RoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Debug("Dropping malformed room request", "error", err)
		return
	}
	if req.Room == "" {
		c.hub.emitTo(c, EventRoomError, roomError{Room: req.Room, Error: "room name is required"})
		return
	}

	if err := op(c.id, req.Room, req.Password); err != nil {
		if !errors.Is(err, rooms.ErrRoomExists) &&
			!errors.Is(err, rooms.ErrRoomNotFound) &&
			!errors.Is(err, rooms.ErrWrongPassword) {
			c.logger.Error("Unexpected room operation failure", "room", req.Room, "error", err)
		}
		c.hub.emitTo(c, EventRoomError, roomError{Room: req.Room, Error: err.Error()})
		return
	}

	c.hub.emitTo(c, ackEvent, roomAck{Room: req.Room})
	c.hub.replayHistory(ctx, c, req.Room)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				return
			}
			continue
		}
		c.dispatch(context.Background(), raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in writePump", "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Error setting write deadline", "error", err)
				return
			}
			if !ok {
				// Hub closed the send channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn("Error writing message", "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Error setting write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn("Error writing ping message", "error", err)
				}
				return
			}
		}
	}
}
