package retrieval

import (
	"context"
	"errors"
	"sort"
)

// ErrUnavailable is returned when the backing vector search cannot be
// reached. Callers treat it as recoverable and fall back to an empty
// context.
var ErrUnavailable = errors.New("retrieval unavailable")

// Scope identifies which policy corpus a snippet came from.
type Scope string

const (
	// ScopeCompany covers internal company policies.
	ScopeCompany Scope = "company"
	// ScopeInternational covers international regulation texts.
	ScopeInternational Scope = "international"
	// ScopeSession covers documents uploaded within one session.
	ScopeSession Scope = "session"
)

// DefaultTopK is the number of snippets returned per scope when the
// caller does not say otherwise.
const DefaultTopK = 5

// Snippet is a retrieved, provenance-tagged fragment of policy text.
// Snippets are transient; they live only as long as the request that
// produced them, except where cited in turn metadata.
type Snippet struct {
	SourceID string  `json:"source_id"`
	Scope    Scope   `json:"scope"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// Document is an ingestible unit of policy text. Session-scoped
// documents carry the owning session ID.
type Document struct {
	ID        string
	Scope     Scope
	SessionID string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// Searcher returns ranked snippets for a query within one scope.
// sessionID is only consulted for ScopeSession.
type Searcher interface {
	Search(ctx context.Context, query string, scope Scope, sessionID string) ([]Snippet, error)
}

// Embedder converts text into vectors for similarity search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchScopes runs one query against several scopes and merges the
// results into a single ranking by descending score.
func SearchScopes(ctx context.Context, searcher Searcher, query, sessionID string, scopes ...Scope) ([]Snippet, error) {
	merged := []Snippet{}
	for _, scope := range scopes {
		snippets, err := searcher.Search(ctx, query, scope, sessionID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, snippets...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}
