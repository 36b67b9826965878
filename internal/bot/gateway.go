// Package bot implements the bot gateway: command choreography between the
// router and the external AI service, including the typing indicator and
// response pacing.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edgard/chatrelay/internal/database"
	"github.com/edgard/chatrelay/internal/gemini"
	"github.com/edgard/chatrelay/internal/router"
)

// Name is the display name the bot signs its replies with.
const Name = "AI Bot"

// Publisher appends a message to a room's history and broadcasts it.
type Publisher interface {
	Publish(ctx context.Context, msg *database.Message) error
}

// Config holds the gateway's tunables.
type Config struct {
	// RequestTimeout bounds the external AI call.
	RequestTimeout time.Duration
	// ReplyDelay paces the reply so the typing indicator is perceptible.
	// Zero disables pacing.
	ReplyDelay time.Duration
	// EmptyQueryReply is sent when the command carries no query; no external
	// call is made for it.
	EmptyQueryReply string
	// NoResponseReply is sent when the service answers without usable text.
	NoResponseReply string
}

type typingPayload struct {
	Username string `json:"username"`
}

// Gateway turns bot invocations into bot-kind chat messages. Failures from
// the external service become reply text; they never propagate to the caller.
type Gateway struct {
	logger    *slog.Logger
	client    gemini.Client
	publisher Publisher
	emitter   router.Emitter
	cfg       Config
}

// NewGateway creates a bot gateway.
func NewGateway(logger *slog.Logger, client gemini.Client, publisher Publisher, emitter router.Emitter, cfg Config) *Gateway {
	return &Gateway{
		logger:    logger.With("component", "bot_gateway"),
		client:    client,
		publisher: publisher,
		emitter:   emitter,
		cfg:       cfg,
	}
}

// Invoke handles one bot invocation scoped to a room. It runs on its own
// goroutine (the router hands off asynchronously), so blocking here never
// delays other rooms' traffic.
func (g *Gateway) Invoke(ctx context.Context, room, query string) {
	log := g.logger.With("room", room)

	if query == "" {
		log.InfoContext(ctx, "Empty bot query, replying with usage prompt")
		g.reply(ctx, room, g.cfg.EmptyQueryReply)
		return
	}

	// Ephemeral pending-response signal; never persisted.
	g.emitter.Emit("typing", typingPayload{Username: Name}, room)

	aiCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	text, err := g.client.Complete(aiCtx, query)
	switch {
	case errors.Is(err, gemini.ErrNoContent):
		text = g.cfg.NoResponseReply
	case err != nil:
		log.WarnContext(ctx, "AI service failure, surfacing as reply", "error", err)
		text = "Error: " + err.Error()
	}

	g.pace(ctx)
	g.reply(ctx, room, text)
}

// pace holds briefly so the typing indicator is perceptible before the reply
// lands. It runs outside any room lock.
func (g *Gateway) pace(ctx context.Context) {
	if g.cfg.ReplyDelay <= 0 {
		return
	}
	select {
	case <-time.After(g.cfg.ReplyDelay):
	case <-ctx.Done():
	}
}

func (g *Gateway) reply(ctx context.Context, room, text string) {
	msg := &database.Message{
		Room:     room,
		Username: Name,
		Body:     text,
		Kind:     database.KindBot,
	}
	if err := g.publisher.Publish(ctx, msg); err != nil {
		g.logger.ErrorContext(ctx, "Failed to publish bot reply", "room", room, "error", err)
	}
}
