package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// PgxPool defines the interface for the database connection pool.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PgvectorStore implements Searcher on top of Postgres with the
// pgvector extension. Ranking uses cosine distance, so the reported
// score is 1 - distance.
type PgvectorStore struct {
	pool     PgxPool
	embedder Embedder
	topK     int
}

// PgvectorOptions configuration for the Postgres connection.
type PgvectorOptions struct {
	ConnString string
	TopK       int // Default DefaultTopK
}

// NewPgvectorStore creates a pgvector-backed snippet store. The
// connection pool registers pgvector's types on every connection.
func NewPgvectorStore(ctx context.Context, embedder Embedder, opts PgvectorOptions) (*PgvectorStore, error) {
	config, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	return &PgvectorStore{pool: pool, embedder: embedder, topK: topK}, nil
}

// NewPgvectorStoreWithPool wraps an existing pool (or a mock in tests).
func NewPgvectorStoreWithPool(pool PgxPool, embedder Embedder, topK int) *PgvectorStore {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &PgvectorStore{pool: pool, embedder: embedder, topK: topK}
}

// InitSchema creates the policy chunk table if it doesn't exist.
func (s *PgvectorStore) InitSchema(ctx context.Context, dimension int) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS policy_chunks (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_policy_chunks_scope ON policy_chunks (scope, session_id);
	`, dimension))
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Add ingests documents, embedding any that arrive without a vector.
func (s *PgvectorStore) Add(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		embedding := doc.Embedding
		if len(embedding) == 0 {
			if s.embedder == nil {
				return fmt.Errorf("no embedder configured and document %s has no embedding", doc.ID)
			}
			var err error
			embedding, err = s.embedder.EmbedQuery(ctx, doc.Text)
			if err != nil {
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
		}

		_, err := s.pool.Exec(ctx, `
			INSERT INTO policy_chunks (id, scope, session_id, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding
		`, doc.ID, string(doc.Scope), doc.SessionID, doc.Text, pgvector.NewVector(embedding))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Search implements Searcher.
func (s *PgvectorStore) Search(ctx context.Context, query string, scope Scope, sessionID string) ([]Snippet, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrUnavailable)
	}

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, content, embedding <=> $1 AS distance
		FROM policy_chunks
		WHERE scope = $2 AND ($2 <> 'session' OR session_id = $3)
		ORDER BY distance
		LIMIT $4
	`, pgvector.NewVector(queryEmbedding), string(scope), sessionID, s.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	snippets := []Snippet{}
	for rows.Next() {
		var snippet Snippet
		var distance float64
		if err := rows.Scan(&snippet.SourceID, &snippet.Text, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		snippet.Scope = scope
		snippet.Score = 1 - distance
		snippets = append(snippets, snippet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return snippets, nil
}

// Close closes the underlying pool.
func (s *PgvectorStore) Close() {
	s.pool.Close()
}
