package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/edgard/chatrelay/internal/config"
	"github.com/edgard/chatrelay/internal/logger"
	"github.com/edgard/chatrelay/internal/router"
)

// SetupRoutes wires all application routes behind the request logging
// middleware and returns the root handler.
func SetupRoutes(log *slog.Logger, hub *Hub, rt *router.Router, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", IndexHandler)
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.HandleFunc("GET /ws", WebSocketHandler(log, hub, cfg.Server))
	mux.HandleFunc("POST /upload", UploadHandler(log, rt, hub, cfg.Upload))
	mux.HandleFunc("GET /files/{name}", FilesHandler(log, cfg.Upload))

	return logger.Middleware(log)(mux)
}

// CreateServer creates the HTTP server with production timeouts. Blanket
// read/write timeouts are avoided because WebSocket connections are
// long-lived; the pumps manage their own deadlines.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
