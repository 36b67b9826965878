package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the chat history data access layer. Methods accept a
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage durably inserts a new message record. The insert is
	// synchronous: when it returns without error the message is on disk.
	SaveMessage(ctx context.Context, message *Message) error

	// HistoryFor retrieves all messages for a room in append order.
	// An unknown room yields an empty slice, never an error.
	HistoryFor(ctx context.Context, room string) ([]Message, error)

	// Rooms returns the distinct room names present in the history.
	Rooms(ctx context.Context) ([]string, error)

	// RunMaintenance performs database maintenance tasks (VACUUM).
	RunMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by the given database connection.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return errors.New("cannot save nil message")
	}
	if message.Room == "" {
		return errors.New("message room cannot be empty")
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (created_at, room, username, body, kind)
		VALUES (:created_at, :room, :username, :body, :kind)
	`

	result, err := s.db.NamedExecContext(ctx, query, message)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while saving message",
			"room", message.Room, "error", err)
		return err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "room", message.Room, "error", err)
		return fmt.Errorf("failed to save message for room %q: %w", message.Room, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not get inserted message ID", "room", message.Room, "error", err)
	}

	s.logger.DebugContext(ctx, "Message saved", "room", message.Room, "kind", message.Kind, "id", message.ID)
	return nil
}

func (s *sqlxStore) HistoryFor(ctx context.Context, room string) ([]Message, error) {
	messages := []Message{}
	query := `
		SELECT id, created_at, room, username, body, kind
		FROM messages
		WHERE room = ?
		ORDER BY id ASC
	`

	s.logger.DebugContext(ctx, "Fetching room history", "room", room)
	err := s.db.SelectContext(ctx, &messages, query, room)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching history",
			"room", room, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching room history", "room", room, "error", err)
		return nil, fmt.Errorf("failed to fetch history for room %q: %w", room, err)
	}

	s.logger.DebugContext(ctx, "Fetched room history", "room", room, "count", len(messages))
	return messages, nil
}

func (s *sqlxStore) Rooms(ctx context.Context) ([]string, error) {
	rooms := []string{}
	err := s.db.SelectContext(ctx, &rooms, `SELECT DISTINCT room FROM messages ORDER BY room`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing rooms from history", "error", err)
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// RunMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
