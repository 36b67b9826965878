// Package main contains the entrypoint for the ChatRelay server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/chatrelay/internal/bot"
	"github.com/edgard/chatrelay/internal/config"
	"github.com/edgard/chatrelay/internal/database"
	"github.com/edgard/chatrelay/internal/gemini"
	"github.com/edgard/chatrelay/internal/logger"
	"github.com/edgard/chatrelay/internal/rooms"
	"github.com/edgard/chatrelay/internal/router"
	"github.com/edgard/chatrelay/internal/server"
	"github.com/edgard/chatrelay/internal/tasks"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// ai client, hub, router, scheduler, http server), handles graceful shutdown,
// and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	if roomNames, err := store.Rooms(ctx); err == nil {
		log.Info("Chat history loaded", "rooms", len(roomNames))
	}

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	registry := rooms.NewRegistry(log)
	hub := server.NewHub(log, registry, store)
	rt := router.New(log, store, hub)
	hub.AttachRouter(rt)

	gateway := bot.NewGateway(log, gemClient, rt, hub, bot.Config{
		RequestTimeout:  cfg.Gemini.Timeout,
		ReplyDelay:      cfg.Bot.ReplyDelay,
		EmptyQueryReply: cfg.Bot.EmptyQueryReply,
		NoResponseReply: cfg.Bot.NoResponseReply,
	})
	rt.AttachGateway(gateway)

	scheduler, err := tasks.NewScheduler(log, store, cfg.Scheduler.MaintenanceInterval)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	handler := server.SetupRoutes(log, hub, rt, cfg)
	httpServer := server.CreateServer(cfg.Server.Addr, handler)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", "error", err)
		}

		if err := hub.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
			log.Warn("Hub shutdown incomplete", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := scheduler.Start(); err != nil {
			return err
		}
		<-gCtx.Done()
		if err := scheduler.Stop(); err != nil {
			log.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server stopped due to error", "error", err)
		return 1
	}

	log.Info("Server stopped gracefully.")
	return 0
}
