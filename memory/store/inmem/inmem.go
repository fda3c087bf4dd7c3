// Package inmem provides process-lifetime implementations of the storage
// tiers. The Checkpointer is the canonical short-term tier; the episodic and
// long-term variants back tests and ephemeral deployments.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fleetmind/memtier/memory"
)

// Checkpointer keeps per-session checkpoint lists in memory.
type Checkpointer struct {
	mu       sync.Mutex
	sessions map[string][]memory.Checkpoint
	now      func() time.Time
}

// NewCheckpointer creates an empty in-memory checkpoint tier.
func NewCheckpointer() *Checkpointer {
	return &Checkpointer{
		sessions: make(map[string][]memory.Checkpoint),
		now:      time.Now,
	}
}

var _ memory.Checkpointer = (*Checkpointer)(nil)

// Put appends a checkpoint for the session with the current timestamp.
func (c *Checkpointer) Put(ctx context.Context, sessionID string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = append(c.sessions[sessionID], memory.Checkpoint{
		Version:   1,
		Timestamp: c.now(),
		Value:     value,
	})
	return nil
}

// Get returns a copy of the session's checkpoints in insertion order.
// An unknown session yields nil.
func (c *Checkpointer) Get(ctx context.Context, sessionID string) ([]memory.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]memory.Checkpoint, len(stored))
	copy(out, stored)
	return out, nil
}

// Clear empties the session's checkpoint list. The session id remains known.
func (c *Checkpointer) Clear(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = []memory.Checkpoint{}
	return nil
}

// Episodic keeps per-key event logs in memory.
type Episodic struct {
	mu     sync.Mutex
	events map[string][]memory.EpisodicEvent
}

// NewEpisodic creates an empty in-memory episodic tier.
func NewEpisodic() *Episodic {
	return &Episodic{events: make(map[string][]memory.EpisodicEvent)}
}

var _ memory.EpisodicStore = (*Episodic)(nil)

// Put appends an event for key.
func (e *Episodic) Put(ctx context.Context, key memory.EventKey, value any, storedAt time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	joined := key.String()
	e.events[joined] = append(e.events[joined], memory.EpisodicEvent{
		Version:  1,
		Value:    value,
		StoredAt: storedAt,
	})
	return nil
}

// Get returns a copy of the events for key in append order, or nil if none.
func (e *Episodic) Get(ctx context.Context, key memory.EventKey) ([]memory.EpisodicEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stored, ok := e.events[key.String()]
	if !ok {
		return nil, nil
	}
	out := make([]memory.EpisodicEvent, len(stored))
	copy(out, stored)
	return out, nil
}

// Keys enumerates every key with at least one event, sorted for determinism.
func (e *Episodic) Keys(ctx context.Context) ([]memory.EventKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	joined := make([]string, 0, len(e.events))
	for k, evs := range e.events {
		if len(evs) > 0 {
			joined = append(joined, k)
		}
	}
	sort.Strings(joined)

	keys := make([]memory.EventKey, 0, len(joined))
	for _, k := range joined {
		keys = append(keys, memory.ParseEventKey(k))
	}
	return keys, nil
}

// LongTerm keeps per-entity aggregate records in memory.
type LongTerm struct {
	mu      sync.Mutex
	records map[string]*memory.LongTermRecord
}

// NewLongTerm creates an empty in-memory long-term tier.
func NewLongTerm() *LongTerm {
	return &LongTerm{records: make(map[string]*memory.LongTermRecord)}
}

var _ memory.LongTermStore = (*LongTerm)(nil)

// Put appends history entries built from value to the record for id,
// creating the record if absent.
func (l *LongTerm) Put(ctx context.Context, id string, value any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[id]
	if !ok {
		record = &memory.LongTermRecord{}
		l.records[id] = record
	}
	record.ServiceHistory = append(record.ServiceHistory, memory.HistoryEntries(value)...)
	return nil
}

// Get returns a copy of the record for id, or nil if absent.
func (l *LongTerm) Get(ctx context.Context, id string) (*memory.LongTermRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[id]
	if !ok {
		return nil, nil
	}
	history := make([]map[string]any, len(record.ServiceHistory))
	copy(history, record.ServiceHistory)
	return &memory.LongTermRecord{ServiceHistory: history}, nil
}

// Search returns every record whose JSON serialization contains query,
// case-insensitively, ordered by id.
func (l *LongTerm) Search(ctx context.Context, query string) ([]memory.LongTermMatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	needle := strings.ToLower(query)
	ids := make([]string, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matches []memory.LongTermMatch
	for _, id := range ids {
		record := l.records[id]
		serialized, err := json.Marshal(record)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(serialized)), needle) {
			history := make([]map[string]any, len(record.ServiceHistory))
			copy(history, record.ServiceHistory)
			matches = append(matches, memory.LongTermMatch{
				ID:     id,
				Record: &memory.LongTermRecord{ServiceHistory: history},
			})
		}
	}
	return matches, nil
}
