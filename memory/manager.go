package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// Manager composes the storage tiers into session lifecycle operations.
// Tier implementations never see each other; the Manager only calls tier
// interface methods and never reaches into tier internals.
type Manager struct {
	checkpoints Checkpointer
	episodic    EpisodicStore
	longTerm    LongTermStore
	retriever   SemanticRetriever // Optional: semantic search over knowledge
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithSemanticRetriever attaches a semantic retriever. Without one,
// SearchSemanticStore returns empty results.
func WithSemanticRetriever(r SemanticRetriever) ManagerOption {
	return func(m *Manager) {
		m.retriever = r
	}
}

// NewManager creates a Manager over the given tiers.
func NewManager(checkpoints Checkpointer, episodic EpisodicStore, longTerm LongTermStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		checkpoints: checkpoints,
		episodic:    episodic,
		longTerm:    longTerm,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession returns a fresh globally-unique session id.
//
// A session id may be reused after EndSession: further checkpoint writes under
// the same id simply start a new active sequence. That looseness is inherited
// from the original design and intentionally not prevented here.
func (m *Manager) CreateSession() string {
	id := uuid.New().String()
	log.Printf("[TIER] Created session %s", id)
	return id
}

// HierarchicalMemory assembles the read-only view over all three tiers.
// Absent short-term or episodic data yields an empty list; an absent
// long-term record yields nil. No tier is mutated.
func (m *Manager) HierarchicalMemory(ctx context.Context, sessionID string, key EventKey) (*MemoryContext, error) {
	checkpoints, err := m.checkpoints.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read checkpoints: %w", err)
	}
	shortTerm := make([]any, 0, len(checkpoints))
	for _, cp := range checkpoints {
		shortTerm = append(shortTerm, cp.Value)
	}

	events, err := m.episodic.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read episodic events: %w", err)
	}
	episodic := make([]any, 0, len(events))
	for _, ev := range events {
		episodic = append(episodic, ev.Value)
	}

	record, err := m.longTerm.Get(ctx, key.LongTermID())
	if err != nil {
		return nil, fmt.Errorf("read long-term record: %w", err)
	}

	return &MemoryContext{
		ShortTerm: shortTerm,
		Episodic:  episodic,
		LongTerm:  record,
	}, nil
}

// SearchSemanticStore delegates to the semantic retriever. With no retriever
// configured or no matches, the result carries an empty list.
func (m *Manager) SearchSemanticStore(ctx context.Context, q SemanticQuery) (*SemanticResults, error) {
	if m.retriever == nil {
		return &SemanticResults{KnowledgeBases: []SemanticMatch{}}, nil
	}

	matches, err := m.retriever.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if matches == nil {
		matches = []SemanticMatch{}
	}
	return &SemanticResults{KnowledgeBases: matches}, nil
}

// EndSession transfers every checkpoint for sessionID into the episodic tier
// under key, preserving insertion order and original timestamps, then clears
// the session's checkpoint list. A session with no checkpoints is a no-op:
// no episodic writes occur.
//
// This is the sole short-term → episodic transfer path and must be invoked
// explicitly at logical session boundaries.
func (m *Manager) EndSession(ctx context.Context, sessionID string, key EventKey) error {
	checkpoints, err := m.checkpoints.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		log.Printf("[TIER] Session %s has no checkpoints, nothing to transfer", sessionID)
		return nil
	}

	for i, cp := range checkpoints {
		if err := m.episodic.Put(ctx, key, cp.Value, cp.Timestamp); err != nil {
			return fmt.Errorf("transfer checkpoint #%d to episodic tier: %w", i+1, err)
		}
	}

	if err := m.checkpoints.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session checkpoints: %w", err)
	}

	log.Printf("[TIER] Ended session %s: moved %d checkpoints to episodic key %s",
		sessionID, len(checkpoints), key)
	return nil
}

// QueryText builds the free-text form of a semantic query for retriever
// implementations. Empty fields are omitted.
func (q SemanticQuery) QueryText() string {
	var parts []string
	if q.Make != "" {
		parts = append(parts, q.Make)
	}
	if q.Model != "" {
		parts = append(parts, q.Model)
	}
	if q.Issue != "" {
		parts = append(parts, q.Issue)
	}
	return strings.Join(parts, " ")
}
