package inmem_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/fleetmind/memtier/memory"
	"github.com/fleetmind/memtier/memory/store/inmem"
)

func TestCheckpointer_OrderAndClear(t *testing.T) {
	ctx := context.Background()
	c := inmem.NewCheckpointer()

	for _, note := range []string{"first", "second", "third"} {
		if err := c.Put(ctx, "s1", note); err != nil {
			t.Fatalf("failed to put checkpoint: %v", err)
		}
	}

	checkpoints, err := c.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get checkpoints: %v", err)
	}
	if len(checkpoints) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(checkpoints))
	}
	for i, want := range []string{"first", "second", "third"} {
		if checkpoints[i].Value != want {
			t.Errorf("checkpoint %d: got %v, want %q", i, checkpoints[i].Value, want)
		}
		if checkpoints[i].Version != 1 {
			t.Errorf("checkpoint %d: expected version 1, got %d", i, checkpoints[i].Version)
		}
	}

	if err := c.Clear(ctx, "s1"); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	checkpoints, err = c.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get after clear: %v", err)
	}
	if len(checkpoints) != 0 {
		t.Errorf("expected empty list after clear, got %d", len(checkpoints))
	}
}

func TestCheckpointer_UnknownSession(t *testing.T) {
	c := inmem.NewCheckpointer()

	checkpoints, err := c.Get(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("unknown session should not error: %v", err)
	}
	if checkpoints != nil {
		t.Errorf("expected nil for unknown session, got %v", checkpoints)
	}
}

func TestEpisodic_KeysReflectPuts(t *testing.T) {
	ctx := context.Background()
	e := inmem.NewEpisodic()
	now := time.Now()

	k1 := memory.EventKey{"cust-1", "VIN-A"}
	k2 := memory.EventKey{"cust-2", "VIN-B"}

	// Multiple puts per key must not duplicate the key listing.
	for i := 0; i < 3; i++ {
		if err := e.Put(ctx, k1, i, now); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
	}
	if err := e.Put(ctx, k2, "x", now); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	keys, err := e.Keys(ctx)
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	want := []memory.EventKey{k1, k2}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys mismatch: got %v, want %v", keys, want)
	}
}

func TestEpisodic_GetUnknownKey(t *testing.T) {
	e := inmem.NewEpisodic()

	events, err := e.Get(context.Background(), memory.EventKey{"nobody", "nothing"})
	if err != nil {
		t.Fatalf("unknown key should not error: %v", err)
	}
	if events != nil {
		t.Errorf("expected nil for unknown key, got %v", events)
	}
}

func TestLongTerm_AppendSemantics(t *testing.T) {
	ctx := context.Background()
	l := inmem.NewLongTerm()

	first := map[string]any{"issueSummary": "brake noise", "resolution": "replaced pads"}
	second := map[string]any{"issueSummary": "oil leak", "resolution": "replaced gasket"}

	if err := l.Put(ctx, "VIN123", first); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := l.Put(ctx, "VIN123", second); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	record, err := l.Get(ctx, "VIN123")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if len(record.ServiceHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(record.ServiceHistory))
	}
	if record.ServiceHistory[0]["issueSummary"] != "brake noise" {
		t.Error("history must preserve call order")
	}
	if record.ServiceHistory[1]["issueSummary"] != "oil leak" {
		t.Error("second entry mismatch")
	}
}

func TestLongTerm_ListValueCreatesEntryPerElement(t *testing.T) {
	ctx := context.Background()
	l := inmem.NewLongTerm()

	issues := []any{
		map[string]any{"issueSummary": "brake noise"},
		map[string]any{"issueSummary": "oil leak"},
	}
	if err := l.Put(ctx, "VIN123", issues); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	record, err := l.Get(ctx, "VIN123")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if len(record.ServiceHistory) != 2 {
		t.Errorf("expected one entry per element, got %d", len(record.ServiceHistory))
	}
}

func TestLongTerm_SearchCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	l := inmem.NewLongTerm()

	if err := l.Put(ctx, "VIN123", map[string]any{"issueSummary": "Brake Noise"}); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := l.Put(ctx, "VIN456", map[string]any{"issueSummary": "oil leak"}); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	matches, err := l.Search(ctx, "brake")
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "VIN123" {
		t.Errorf("unexpected matches: %v", matches)
	}

	matches, err = l.Search(ctx, "transmission")
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}
