// Package summarizer defines the external text-summarization collaborator
// used by memory consolidation. The production implementation is backed by
// the Anthropic API (see the anthropic subpackage); tests inject a Func.
package summarizer

import (
	"context"
	"errors"
)

// ErrThrottled marks a transient rate-limit failure. Callers retry these with
// backoff; every other failure kind is non-retryable and propagates.
// Implementations wrap it: fmt.Errorf("...: %w", summarizer.ErrThrottled).
var ErrThrottled = errors.New("summarizer throttled")

// Summarizer turns a prompt into summary text. A call may block for the
// duration of a remote model invocation, so callers bound it with a context
// deadline.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to the Summarizer interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Summarize implements Summarizer.
func (f Func) Summarize(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
