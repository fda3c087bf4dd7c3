// Package anthropic implements the Summarizer interface on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fleetmind/memtier/summarizer"
)

// Config configures the Claude-backed summarizer.
type Config struct {
	// APIKey authenticates with the Anthropic API.
	APIKey string

	// Model is the Claude model to use. Default: claude-sonnet-4-20250514.
	Model string

	// MaxTokens is the maximum response tokens. Default: 1024.
	MaxTokens int64
}

// Summarizer calls Claude to summarize consolidation prompts.
type Summarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Claude-backed summarizer.
func New(cfg Config) *Summarizer {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Summarizer{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

var _ summarizer.Summarizer = (*Summarizer)(nil)

// Summarize sends the prompt to Claude and returns the concatenated text
// blocks of the response. HTTP 429 responses surface as
// summarizer.ErrThrottled so the consolidator can retry them; every other
// failure propagates as-is.
func (s *Summarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("claude API rate limited: %w", summarizer.ErrThrottled)
		}
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("claude API returned no text content")
	}
	return text, nil
}
