package memory_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/fleetmind/memtier/memory"
	"github.com/fleetmind/memtier/memory/store/inmem"
)

func newTestManager(opts ...memory.ManagerOption) (*memory.Manager, *inmem.Checkpointer, *inmem.Episodic, *inmem.LongTerm) {
	checkpoints := inmem.NewCheckpointer()
	episodic := inmem.NewEpisodic()
	longTerm := inmem.NewLongTerm()
	return memory.NewManager(checkpoints, episodic, longTerm, opts...), checkpoints, episodic, longTerm
}

func TestManager_CreateSessionUnique(t *testing.T) {
	m, _, _, _ := newTestManager()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := m.CreateSession()
		if id == "" {
			t.Fatal("expected non-empty session id")
		}
		if seen[id] {
			t.Fatalf("duplicate session id: %s", id)
		}
		seen[id] = true
	}
}

func TestManager_EndToEnd(t *testing.T) {
	ctx := context.Background()
	m, checkpoints, episodic, _ := newTestManager()

	sessionID := m.CreateSession()
	key := memory.EventKey{"cust-42", "VIN123"}

	if err := checkpoints.Put(ctx, sessionID, map[string]any{"note": "check brakes"}); err != nil {
		t.Fatalf("failed to put checkpoint: %v", err)
	}
	if err := checkpoints.Put(ctx, sessionID, map[string]any{"note": "check tires"}); err != nil {
		t.Fatalf("failed to put checkpoint: %v", err)
	}

	if err := m.EndSession(ctx, sessionID, key); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}

	events, err := episodic.Get(ctx, key)
	if err != nil {
		t.Fatalf("failed to read episodic events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 episodic events, got %d", len(events))
	}
	want := []any{
		map[string]any{"note": "check brakes"},
		map[string]any{"note": "check tires"},
	}
	for i, ev := range events {
		if !reflect.DeepEqual(ev.Value, want[i]) {
			t.Errorf("event %d: got %v, want %v", i, ev.Value, want[i])
		}
	}

	view, err := m.HierarchicalMemory(ctx, sessionID, key)
	if err != nil {
		t.Fatalf("failed to read hierarchical memory: %v", err)
	}
	if len(view.ShortTerm) != 0 {
		t.Errorf("expected empty short-term after EndSession, got %v", view.ShortTerm)
	}
	if !reflect.DeepEqual(view.Episodic, want) {
		t.Errorf("episodic view mismatch: got %v, want %v", view.Episodic, want)
	}
	if view.LongTerm != nil {
		t.Errorf("expected nil long-term record, got %v", view.LongTerm)
	}
}

func TestManager_EndSessionPreservesTimestamps(t *testing.T) {
	ctx := context.Background()
	m, checkpoints, episodic, _ := newTestManager()

	sessionID := m.CreateSession()
	key := memory.EventKey{"cust-1", "VIN-A"}

	if err := checkpoints.Put(ctx, sessionID, "first"); err != nil {
		t.Fatalf("failed to put checkpoint: %v", err)
	}

	stored, err := checkpoints.Get(ctx, sessionID)
	if err != nil {
		t.Fatalf("failed to read checkpoints: %v", err)
	}
	originalTime := stored[0].Timestamp

	if err := m.EndSession(ctx, sessionID, key); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}

	events, err := episodic.Get(ctx, key)
	if err != nil {
		t.Fatalf("failed to read episodic events: %v", err)
	}
	if !events[0].StoredAt.Equal(originalTime) {
		t.Errorf("expected StoredAt %v to match checkpoint time %v", events[0].StoredAt, originalTime)
	}
}

func TestManager_EndSessionNoCheckpointsIsNoOp(t *testing.T) {
	ctx := context.Background()
	m, _, episodic, _ := newTestManager()

	key := memory.EventKey{"cust-99", "VIN999"}
	if err := m.EndSession(ctx, "never-used-session", key); err != nil {
		t.Fatalf("EndSession on empty session should not error: %v", err)
	}

	events, err := episodic.Get(ctx, key)
	if err != nil {
		t.Fatalf("failed to read episodic events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no episodic writes, got %d events", len(events))
	}
}

func TestManager_HierarchicalMemoryAllTiersAbsent(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager()

	view, err := m.HierarchicalMemory(ctx, "unknown-session", memory.EventKey{"nobody", "nothing"})
	if err != nil {
		t.Fatalf("absent data should not error: %v", err)
	}
	if view.ShortTerm == nil || len(view.ShortTerm) != 0 {
		t.Errorf("expected empty short-term list, got %v", view.ShortTerm)
	}
	if view.Episodic == nil || len(view.Episodic) != 0 {
		t.Errorf("expected empty episodic list, got %v", view.Episodic)
	}
	if view.LongTerm != nil {
		t.Errorf("expected nil long-term record, got %v", view.LongTerm)
	}
}

func TestManager_HierarchicalMemoryIncludesLongTerm(t *testing.T) {
	ctx := context.Background()
	m, _, _, longTerm := newTestManager()

	key := memory.EventKey{"cust-42", "VIN123"}
	summary := map[string]any{"issueSummary": "worn brake pads", "resolution": "replaced pads"}
	if err := longTerm.Put(ctx, key.LongTermID(), summary); err != nil {
		t.Fatalf("failed to seed long-term record: %v", err)
	}

	view, err := m.HierarchicalMemory(ctx, "any-session", key)
	if err != nil {
		t.Fatalf("failed to read hierarchical memory: %v", err)
	}
	if view.LongTerm == nil || len(view.LongTerm.ServiceHistory) != 1 {
		t.Fatalf("expected long-term record with 1 history entry, got %v", view.LongTerm)
	}
}

func TestManager_SearchSemanticStoreWithoutRetriever(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager()

	results, err := m.SearchSemanticStore(ctx, memory.SemanticQuery{Issue: "brake noise"})
	if err != nil {
		t.Fatalf("search without retriever should not error: %v", err)
	}
	if results.KnowledgeBases == nil || len(results.KnowledgeBases) != 0 {
		t.Errorf("expected empty result list, got %v", results.KnowledgeBases)
	}
}

// staticRetriever returns canned matches for retriever wiring tests.
type staticRetriever struct {
	matches []memory.SemanticMatch
}

func (s *staticRetriever) Build(ctx context.Context) error {
	return nil
}

func (s *staticRetriever) Search(ctx context.Context, q memory.SemanticQuery) ([]memory.SemanticMatch, error) {
	return s.matches, nil
}

func TestManager_SearchSemanticStoreDelegates(t *testing.T) {
	ctx := context.Background()
	retriever := &staticRetriever{matches: []memory.SemanticMatch{
		{ID: "VIN123", Score: 0.91, Content: "worn brake pads replaced"},
	}}
	m, _, _, _ := newTestManager(memory.WithSemanticRetriever(retriever))

	results, err := m.SearchSemanticStore(ctx, memory.SemanticQuery{Make: "Toyota", Issue: "brakes"})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results.KnowledgeBases) != 1 || results.KnowledgeBases[0].ID != "VIN123" {
		t.Errorf("unexpected results: %v", results.KnowledgeBases)
	}
}

func TestEventKey_LongTermID(t *testing.T) {
	cases := []struct {
		key  memory.EventKey
		want string
	}{
		{memory.EventKey{"cust-42", "VIN123"}, "VIN123"},
		{memory.EventKey{"solo"}, "solo"},
		{memory.EventKey{"a", "b", "c"}, "b"},
		{memory.EventKey{}, ""},
	}
	for _, tc := range cases {
		if got := tc.key.LongTermID(); got != tc.want {
			t.Errorf("LongTermID(%v) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestEventKey_RoundTrip(t *testing.T) {
	key := memory.EventKey{"cust-42", "VIN123"}
	if key.Filename() != "cust-42_VIN123.json" {
		t.Errorf("unexpected filename: %s", key.Filename())
	}
	parsed := memory.ParseEventKey("cust-42_VIN123")
	if !reflect.DeepEqual(parsed, key) {
		t.Errorf("round trip mismatch: got %v, want %v", parsed, key)
	}
}
