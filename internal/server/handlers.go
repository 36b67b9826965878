package server

import (
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/edgard/chatrelay/internal/config"
)

//go:embed index.html
var indexPage []byte

// WebSocketHandler returns the handler that upgrades connections and hands
// them to the hub.
func WebSocketHandler(logger *slog.Logger, hub *Hub, cfg config.ServerConfig) http.HandlerFunc {
	log := logger.With("component", "ws_handler")
	checker := newOriginChecker(logger, cfg.AllowedOrigins)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checker.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(uuid.NewString(), conn, hub, r.RemoteAddr, cfg.MaxMessageSize)
		hub.Register(client)
	}
}

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// IndexHandler serves the embedded chat page.
func IndexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}
