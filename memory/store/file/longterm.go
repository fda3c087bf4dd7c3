package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/fleetmind/memtier/memory"
)

// LongTerm is the file-backed long-term tier: a single JSON file mapping
// entity id to its record.
type LongTerm struct {
	mu   sync.Mutex
	path string
}

// NewLongTerm creates the long-term tier persisted at path, creating the
// parent directory if needed. The file itself appears on first Put.
func NewLongTerm(path string) (*LongTerm, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create long-term storage dir: %w", err)
	}
	return &LongTerm{path: path}, nil
}

var _ memory.LongTermStore = (*LongTerm)(nil)

// Put appends history entries built from value to the record for id,
// creating the record if absent.
func (l *LongTerm) Put(ctx context.Context, id string, value any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}

	record, ok := records[id]
	if !ok {
		record = &memory.LongTermRecord{}
		records[id] = record
	}
	record.ServiceHistory = append(record.ServiceHistory, memory.HistoryEntries(value)...)

	return l.save(records)
}

// Get returns the record for id, or nil if absent.
func (l *LongTerm) Get(ctx context.Context, id string) (*memory.LongTermRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	return records[id], nil
}

// Search returns every record whose JSON serialization contains query,
// case-insensitively, ordered by id.
func (l *LongTerm) Search(ctx context.Context, query string) ([]memory.LongTermMatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matches []memory.LongTermMatch
	for _, id := range ids {
		serialized, err := json.Marshal(records[id])
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(serialized)), needle) {
			matches = append(matches, memory.LongTermMatch{ID: id, Record: records[id]})
		}
	}
	return matches, nil
}

// All returns every record keyed by id. Retriever indexing uses this to walk
// the store; it is not part of the LongTermStore contract.
func (l *LongTerm) All(ctx context.Context) (map[string]*memory.LongTermRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *LongTerm) load() (map[string]*memory.LongTermRecord, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*memory.LongTermRecord), nil
		}
		return nil, fmt.Errorf("read long-term file %s: %w", l.path, err)
	}

	records := make(map[string]*memory.LongTermRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode long-term file %s: %w", l.path, err)
	}
	return records, nil
}

func (l *LongTerm) save(records map[string]*memory.LongTermRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal long-term records: %w", err)
	}
	return writeFileAtomic(l.path, data)
}
