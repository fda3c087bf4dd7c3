package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fleetmind/memtier/memory"
)

// Episodic is the file-backed episodic tier: one JSON file per key under dir.
type Episodic struct {
	mu  sync.Mutex
	dir string
}

// NewEpisodic creates the episodic tier rooted at dir, creating dir if needed.
func NewEpisodic(dir string) (*Episodic, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create episodic storage dir: %w", err)
	}
	return &Episodic{dir: dir}, nil
}

var _ memory.EpisodicStore = (*Episodic)(nil)

// Put appends an event envelope to the key's file.
func (e *Episodic) Put(ctx context.Context, key memory.EventKey, value any, storedAt time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := filepath.Join(e.dir, key.Filename())
	events, err := readEvents(path)
	if err != nil {
		return err
	}

	events = append(events, memory.EpisodicEvent{
		Version:  1,
		Value:    value,
		StoredAt: storedAt,
	})

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events for %s: %w", key, err)
	}
	return writeFileAtomic(path, data)
}

// Get returns all events for key in append order, or nil if the key has
// never been written.
func (e *Episodic) Get(ctx context.Context, key memory.EventKey) ([]memory.EpisodicEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return readEvents(filepath.Join(e.dir, key.Filename()))
}

// Keys enumerates every key with a persisted file, recovering each key from
// its filename, sorted for determinism.
func (e *Episodic) Keys(ctx context.Context) ([]memory.EventKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("list episodic storage dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)

	keys := make([]memory.EventKey, 0, len(names))
	for _, name := range names {
		keys = append(keys, memory.ParseEventKey(name))
	}
	return keys, nil
}

func readEvents(path string) ([]memory.EpisodicEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read episodic file %s: %w", path, err)
	}

	var events []memory.EpisodicEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode episodic file %s: %w", path, err)
	}
	return events, nil
}
