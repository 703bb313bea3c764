package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryVectorStore is an in-process vector store with cosine
// similarity ranking. It serves all three scopes; session-scoped
// documents are only visible to their owning session.
type MemoryVectorStore struct {
	mu       sync.RWMutex
	docs     []Document
	embedder Embedder
	topK     int
}

// MemoryVectorStoreOption configures the MemoryVectorStore.
type MemoryVectorStoreOption func(*MemoryVectorStore)

// WithTopK sets the number of snippets returned per search.
func WithTopK(k int) MemoryVectorStoreOption {
	return func(s *MemoryVectorStore) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewMemoryVectorStore creates an empty in-memory vector store.
func NewMemoryVectorStore(embedder Embedder, opts ...MemoryVectorStoreOption) *MemoryVectorStore {
	s := &MemoryVectorStore{
		embedder: embedder,
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add ingests documents, embedding any that arrive without a vector.
func (s *MemoryVectorStore) Add(ctx context.Context, docs ...Document) error {
	prepared := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			if s.embedder == nil {
				return fmt.Errorf("no embedder configured and document %s has no embedding", doc.ID)
			}
			embedding, err := s.embedder.EmbedQuery(ctx, doc.Text)
			if err != nil {
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			doc.Embedding = embedding
		}
		prepared = append(prepared, doc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, prepared...)
	return nil
}

// Search implements Searcher.
func (s *MemoryVectorStore) Search(ctx context.Context, query string, scope Scope, sessionID string) ([]Snippet, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrUnavailable)
	}

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc   Document
		score float64
	}
	candidates := []scored{}
	for _, doc := range s.docs {
		if doc.Scope != scope {
			continue
		}
		if scope == ScopeSession && doc.SessionID != sessionID {
			continue
		}
		candidates = append(candidates, scored{
			doc:   doc,
			score: cosineSimilarity(queryEmbedding, doc.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	k := s.topK
	if k > len(candidates) {
		k = len(candidates)
	}

	snippets := make([]Snippet, 0, k)
	for _, c := range candidates[:k] {
		snippets = append(snippets, Snippet{
			SourceID: c.doc.ID,
			Scope:    scope,
			Score:    c.score,
			Text:     c.doc.Text,
		})
	}
	return snippets, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
