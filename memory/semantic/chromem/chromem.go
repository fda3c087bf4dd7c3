// Package chromem implements the SemanticRetriever interface on chromem-go,
// a pure-Go embedded vector database. Indexed documents are consolidated
// service summaries; ranking is chromem's cosine similarity.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/fleetmind/memtier/memory"
)

const collectionName = "service-knowledge"

// Retriever is a chromem-backed semantic index.
type Retriever struct {
	embedder memory.Embedder

	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	docCount   int
}

// New creates a retriever that embeds documents and queries with embedder.
func New(embedder memory.Embedder) *Retriever {
	return &Retriever{embedder: embedder}
}

var _ memory.SemanticRetriever = (*Retriever)(nil)

// Build initializes an empty index, discarding any previous one.
func (r *Retriever) Build(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db := chromem.NewDB()
	col, err := db.CreateCollection(
		collectionName,
		nil, // no collection metadata
		nil, // embeddings are provided per document
	)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	r.db = db
	r.collection = col
	r.docCount = 0
	log.Printf("[CHROMEM] Initialized semantic index %q", collectionName)
	return nil
}

// Index embeds text and adds it to the index under id. Metadata rides along
// into search results (e.g. make/model for filtering by the caller).
func (r *Retriever) Index(ctx context.Context, id string, text string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.collection == nil {
		return fmt.Errorf("semantic index not built (call Build first)")
	}

	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", id, err)
	}

	err = r.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}
	r.docCount++
	return nil
}

// Search embeds the query text and returns ranked matches, best first.
// An empty index or empty query yields no matches.
func (r *Retriever) Search(ctx context.Context, q memory.SemanticQuery) ([]memory.SemanticMatch, error) {
	r.mu.Lock()
	collection := r.collection
	limit := r.docCount
	r.mu.Unlock()

	if collection == nil {
		return nil, fmt.Errorf("semantic index not built (call Build first)")
	}
	if limit == 0 {
		return nil, nil
	}
	// chromem requires nResults <= collection size.
	if limit > 5 {
		limit = 5
	}

	queryText := q.QueryText()
	if queryText == "" {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.SemanticMatch, 0, len(results))
	for _, result := range results {
		matches = append(matches, memory.SemanticMatch{
			ID:       result.ID,
			Score:    result.Similarity,
			Content:  result.Content,
			Metadata: result.Metadata,
		})
	}
	log.Printf("[CHROMEM] Query %q returned %d matches", queryText, len(matches))
	return matches, nil
}
