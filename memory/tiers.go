package memory

import (
	"context"
	"strings"
	"time"
)

// Checkpoint is one recorded snapshot of session state. Checkpoints accumulate
// per session in insertion order and are transferred wholesale to the episodic
// tier when the session ends.
type Checkpoint struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}

// EpisodicEvent is one durable record of an interaction tied to an entity key.
// Events are append-only: never mutated, only appended and later aggregated
// by the Consolidator. StoredAt carries the timestamp of the original
// recording, not the transfer time.
type EpisodicEvent struct {
	Version  int       `json:"version"`
	Value    any       `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// LongTermRecord is the growing per-entity aggregate. Each consolidation run
// appends history entries; history is never truncated.
type LongTermRecord struct {
	ServiceHistory []map[string]any `json:"serviceHistory"`
}

// LongTermMatch pairs a long-term record with its identifier in search results.
type LongTermMatch struct {
	ID     string          `json:"id"`
	Record *LongTermRecord `json:"record"`
}

// EventKey identifies an entity in the episodic tier, e.g. {customerID, assetID}.
// Keys serialize to filenames by joining components with "_"; components must
// not themselves contain the separator (accepted limitation of the layout).
type EventKey []string

// KeySeparator joins EventKey components in filenames and log output.
const KeySeparator = "_"

// String returns the joined form of the key.
func (k EventKey) String() string {
	return strings.Join(k, KeySeparator)
}

// Filename returns the episodic tier's on-disk name for this key.
func (k EventKey) Filename() string {
	return k.String() + ".json"
}

// LongTermID derives the long-term tier identifier: the second component when
// the key has more than one, else the first. For {customerID, assetID} the
// long-term tier aggregates by asset, not by customer.
func (k EventKey) LongTermID() string {
	if len(k) > 1 {
		return k[1]
	}
	if len(k) == 1 {
		return k[0]
	}
	return ""
}

// ParseEventKey decomposes a joined key back into component form.
func ParseEventKey(joined string) EventKey {
	if joined == "" {
		return nil
	}
	return EventKey(strings.Split(joined, KeySeparator))
}

// MemoryContext is the assembled read-only view over all tiers. It is
// regenerated on every query, never persisted.
type MemoryContext struct {
	ShortTerm []any           `json:"shortTerm"`
	Episodic  []any           `json:"episodic"`
	LongTerm  *LongTermRecord `json:"longTerm"`
}

// SemanticQuery describes a semantic-store lookup. All fields are optional;
// empty fields are simply omitted from the query text.
type SemanticQuery struct {
	Make  string
	Model string
	Issue string
}

// SemanticMatch is one ranked result from the semantic retriever.
type SemanticMatch struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SemanticResults wraps retriever matches for callers.
type SemanticResults struct {
	KnowledgeBases []SemanticMatch `json:"knowledgeBases"`
}

// Checkpointer is the session-scoped short-term tier. Implementations hold
// data for the process lifetime only.
type Checkpointer interface {
	// Put appends a checkpoint for the session with the current timestamp.
	Put(ctx context.Context, sessionID string, value any) error

	// Get returns the session's checkpoints in insertion order. An unknown
	// session yields a nil slice, not an error.
	Get(ctx context.Context, sessionID string) ([]Checkpoint, error)

	// Clear empties the session's checkpoint list. The session id may remain
	// known afterwards, with no data.
	Clear(ctx context.Context, sessionID string) error
}

// EpisodicStore is the keyed append-only event log.
type EpisodicStore interface {
	// Put appends an event for key, preserving storedAt from the original
	// recording.
	Put(ctx context.Context, key EventKey, value any, storedAt time.Time) error

	// Get returns all events for key in append order, or nil if none exist.
	Get(ctx context.Context, key EventKey) ([]EpisodicEvent, error)

	// Keys enumerates every key for which at least one event exists.
	Keys(ctx context.Context) ([]EventKey, error)
}

// LongTermStore is the per-entity aggregate tier with append semantics:
// Put never replaces a record, it grows the record's history.
type LongTermStore interface {
	// Put appends history entries built from value to the record for id,
	// creating the record if absent. A slice value contributes one entry
	// per element.
	Put(ctx context.Context, id string, value any) error

	// Get returns the record for id, or nil if absent.
	Get(ctx context.Context, id string) (*LongTermRecord, error)

	// Search returns every record whose serialized form contains query,
	// case-insensitively, ordered by id.
	Search(ctx context.Context, query string) ([]LongTermMatch, error)
}

// SemanticRetriever is the optional vector-search index over consolidated
// knowledge. The orchestrator treats it as an external collaborator and
// operates fully without one.
type SemanticRetriever interface {
	// Build initializes the index.
	Build(ctx context.Context) error

	// Search returns ranked matches for the query.
	Search(ctx context.Context, q SemanticQuery) ([]SemanticMatch, error)
}

// Embedder converts text to vector embeddings for the semantic retriever.
// Implementations: mock (testing), ONNX MiniLM (local, build tag "onnx").
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HistoryEntries normalizes a Put value into long-term history entries.
// Maps become a single entry; slices contribute one entry per element;
// anything else is wrapped under a "value" field.
func HistoryEntries(value any) []map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return []map[string]any{copyEntry(v)}
	case []map[string]any:
		entries := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			entries = append(entries, copyEntry(elem))
		}
		return entries
	case []any:
		entries := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			if m, ok := elem.(map[string]any); ok {
				entries = append(entries, copyEntry(m))
			} else {
				entries = append(entries, map[string]any{"value": elem})
			}
		}
		return entries
	default:
		return []map[string]any{{"value": value}}
	}
}

func copyEntry(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
