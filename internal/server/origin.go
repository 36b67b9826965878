package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originChecker validates WebSocket upgrade origins against the configured
// allow list. A "*" entry allows every origin.
type originChecker struct {
	logger   *slog.Logger
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginChecker(logger *slog.Logger, origins []string) *originChecker {
	oc := &originChecker{
		logger:  logger.With("component", "origin_check"),
		allowed: make(map[string]struct{}, len(origins)),
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			oc.logger.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		oc.allowed[normalized] = struct{}{}
	}

	return oc
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (oc *originChecker) check(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if oc.allowAll {
		return true
	}
	if _, exists := oc.allowed[normalized]; exists {
		return true
	}

	oc.logger.Warn("Blocked WebSocket connection from disallowed origin", "origin", originHeader)
	return false
}
