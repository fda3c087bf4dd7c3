package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fleetmind/memtier/summarizer"
)

var (
	// ErrRetriesExhausted is returned when every summarizer attempt was
	// throttled and the retry budget ran out.
	ErrRetriesExhausted = errors.New("summarizer retries exhausted")

	// ErrSummaryParse is returned when the summarizer's output is not valid
	// JSON. The long-term tier is left unmodified in that case.
	ErrSummaryParse = errors.New("summary is not valid JSON")
)

// summaryInstructions tells the summarizer the exact output contract the
// long-term tier expects.
const summaryInstructions = `You are consolidating vehicle service history. Summarize the service events above into a single JSON object with exactly these fields:

{
  "issueSummary": "<one-sentence summary of the issues addressed>",
  "resolution": "<what was done to resolve them>",
  "serviceEngineer": "<name of the engineer/technician>",
  "serviceDate": "<date of the most recent service, YYYY-MM-DD>",
  "additionalNotes": "<anything noteworthy for future visits>",
  "cost": {"parts": 0, "labor": 0, "tax": 0, "total": 0}
}

Respond with the JSON object only. Do not add any other text.`

// promptFieldOrder fixes the rendering order of well-known event fields so
// the same episodic events always produce the same prompt.
var promptFieldOrder = []string{
	"serviceType",
	"technician",
	"issuesObserved",
	"customerAgreement",
	"notes",
	"date",
	"cost",
}

// Consolidator reduces a key's unbounded episodic history into one growing
// long-term record through an external summarization call.
//
// Consolidation is not idempotent: re-running it over the same unconsolidated
// episodic events appends duplicate history entries, because episodic events
// are never marked consumed. That matches the original system's behavior; see
// DESIGN.md for the open question around a consumed watermark.
type Consolidator struct {
	episodic   EpisodicStore
	longTerm   LongTermStore
	summarizer summarizer.Summarizer

	maxAttempts int
	retryDelay  time.Duration
	callTimeout time.Duration
}

// ConsolidatorOption configures a Consolidator.
type ConsolidatorOption func(*Consolidator)

// WithMaxAttempts bounds summarizer attempts on throttled failures. Default: 3.
func WithMaxAttempts(n int) ConsolidatorOption {
	return func(c *Consolidator) {
		c.maxAttempts = n
	}
}

// WithRetryDelay sets the fixed delay between throttled attempts. Default: 60s.
func WithRetryDelay(d time.Duration) ConsolidatorOption {
	return func(c *Consolidator) {
		c.retryDelay = d
	}
}

// WithCallTimeout bounds each individual summarizer invocation. Default: 120s.
func WithCallTimeout(d time.Duration) ConsolidatorOption {
	return func(c *Consolidator) {
		c.callTimeout = d
	}
}

// NewConsolidator creates a Consolidator over the given tiers and summarizer.
func NewConsolidator(episodic EpisodicStore, longTerm LongTermStore, s summarizer.Summarizer, opts ...ConsolidatorOption) *Consolidator {
	c := &Consolidator{
		episodic:    episodic,
		longTerm:    longTerm,
		summarizer:  s,
		maxAttempts: 3,
		retryDelay:  60 * time.Second,
		callTimeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	// A zero or negative attempt budget would skip the summarizer entirely.
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Consolidate reads all episodic events for key, summarizes them, and appends
// the parsed summary to the long-term record derived from the key. With no
// episodic events it returns a status without calling the summarizer or
// touching long-term storage.
func (c *Consolidator) Consolidate(ctx context.Context, key EventKey) (string, error) {
	events, err := c.episodic.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read episodic events: %w", err)
	}
	if len(events) == 0 {
		log.Printf("[CONSOLIDATE] No episodic events for %s", key)
		return fmt.Sprintf("no episodic events for %s; nothing to consolidate", key), nil
	}

	prompt := buildSummaryPrompt(events)

	raw, err := c.summarizeWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}

	summary, err := parseSummary(raw)
	if err != nil {
		return "", err
	}

	id := key.LongTermID()
	if err := c.longTerm.Put(ctx, id, summary); err != nil {
		return "", fmt.Errorf("write long-term record %s: %w", id, err)
	}

	log.Printf("[CONSOLIDATE] Merged %d events from %s into long-term record %s",
		len(events), key, id)
	return fmt.Sprintf("consolidated %d episodic events into long-term record %s", len(events), id), nil
}

// summarizeWithRetry invokes the summarizer, retrying only throttled failures
// with a fixed delay. Each attempt is bounded by the call timeout.
func (c *Consolidator) summarizeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		out, err := c.summarizer.Summarize(callCtx, prompt)
		cancel()

		if err == nil {
			return out, nil
		}
		if !errors.Is(err, summarizer.ErrThrottled) {
			return "", fmt.Errorf("summarize: %w", err)
		}

		lastErr = err
		if attempt < c.maxAttempts {
			log.Printf("[CONSOLIDATE] Summarizer throttled (attempt %d/%d), retrying in %s",
				attempt, c.maxAttempts, c.retryDelay)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.maxAttempts, lastErr)
}

// buildSummaryPrompt renders the events into a deterministic textual prompt:
// well-known fields in a fixed order, remaining fields sorted by name.
func buildSummaryPrompt(events []EpisodicEvent) string {
	var b strings.Builder
	b.WriteString("Service events, oldest first:\n\n")

	for i, ev := range events {
		fmt.Fprintf(&b, "Event %d", i+1)
		if !ev.StoredAt.IsZero() {
			fmt.Fprintf(&b, " (recorded %s)", ev.StoredAt.Format("2006-01-02"))
		}
		b.WriteString(":\n")

		fields, ok := ev.Value.(map[string]any)
		if !ok {
			fmt.Fprintf(&b, "  %s\n", renderFieldValue(ev.Value))
			continue
		}

		written := make(map[string]bool, len(fields))
		for _, name := range promptFieldOrder {
			if v, present := fields[name]; present {
				fmt.Fprintf(&b, "  %s: %s\n", name, renderFieldValue(v))
				written[name] = true
			}
		}

		var extras []string
		for name := range fields {
			if !written[name] {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		for _, name := range extras {
			fmt.Fprintf(&b, "  %s: %s\n", name, renderFieldValue(fields[name]))
		}
	}

	b.WriteString("\n")
	b.WriteString(summaryInstructions)
	return b.String()
}

// renderFieldValue serializes a field value for the prompt. JSON gives a
// stable form for nested maps (keys are sorted by the encoder).
func renderFieldValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// parseSummary strips any code fences the summarizer added and parses the
// remainder as a JSON object.
func parseSummary(raw string) (map[string]any, error) {
	cleaned := stripCodeFences(raw)

	var summary map[string]any
	if err := json.Unmarshal([]byte(cleaned), &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummaryParse, err)
	}
	return summary, nil
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, leaving bare JSON untouched.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
