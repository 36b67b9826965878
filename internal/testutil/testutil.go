// Package testutil provides small helpers shared across package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"
)

// Logger returns a discard-backed slog logger for tests.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
