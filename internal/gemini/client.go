// Package gemini implements the integration with Google's Gemini API. Each
// completion request is stateless: the query is the entire prompt and no
// conversation history is forwarded.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/chatrelay/internal/config"
)

// ErrNoContent indicates the service answered successfully but produced no
// usable text. Callers substitute their own fixed reply for this case.
var ErrNoContent = errors.New("no valid response content")

// ErrNotConfigured indicates the client has no API key. Invocations fail on
// the standard failure path instead of preventing startup.
var ErrNotConfigured = errors.New("gemini API key is not configured")

// Client defines the completion operation used by the bot gateway.
type Client interface {
	// Complete sends the query as the entire prompt and returns the
	// normalized response text.
	Complete(ctx context.Context, query string) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	model       string
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a new Gemini client with the provided configuration.
// A missing API key yields a client whose every call fails with
// ErrNotConfigured; construction itself never fails for that reason.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	logger := log.With("component", "gemini_client")

	if cfg.APIKey == "" {
		logger.Warn("No Gemini API key configured, bot invocations will fail until one is provided")
		return &unconfiguredClient{}, nil
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

func (c *sdkClient) Complete(ctx context.Context, query string) (string, error) {
	c.log.DebugContext(ctx, "Generating completion", "query_len", len(query))

	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini completion failed", "error", err)
		return "", err
	}

	text, err := normalizeResponse(resp)
	if err != nil {
		c.log.WarnContext(ctx, "Gemini response carried no usable text", "error", err)
		return "", err
	}
	return text, nil
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.model, contents, nil)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				select {
				case <-time.After(c.retryDelay):
					continue
				case <-ctx.Done():
					return nil, fmt.Errorf("gemini API call cancelled during retry wait: %w", ctx.Err())
				}
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

// normalizeResponse resolves the response shape the service may return:
// a candidate with text parts (fragments joined by single spaces, order
// preserved), or nothing usable, which maps to ErrNoContent.
func normalizeResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrNoContent
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("request blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoContent
	}

	var fragments []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			fragments = append(fragments, part.Text)
		}
	}
	if len(fragments) == 0 {
		return "", ErrNoContent
	}

	return strings.Join(fragments, " "), nil
}

// unconfiguredClient fails every call; it stands in when no API key is set.
type unconfiguredClient struct{}

func (unconfiguredClient) Complete(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
