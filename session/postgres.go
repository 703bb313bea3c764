package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool defines the interface for the database connection pool.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using PostgreSQL. Each append runs in
// a transaction that lazily creates the session row and inserts the
// turn; a BIGSERIAL sequence preserves append order.
type PostgresStore struct {
	pool DBPool
}

// PostgresOptions configuration for the Postgres connection.
type PostgresOptions struct {
	ConnString string
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool (or a mock in tests).
func NewPostgresStoreWithPool(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates the necessary tables if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'New Chat',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS chat_turns (
			seq BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id),
			turn_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns (session_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load returns all turns for the session in append order.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT turn_id, role, content, metadata, created_at
		FROM chat_turns
		WHERE session_id = $1
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var turn Turn
		var role string
		var metadata []byte
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &metadata, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = Role(role)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &turn.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal turn metadata: %w", err)
			}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}
	return turns, nil
}

// Append inserts a turn, creating the session row on first write.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	var metadata []byte
	if turn.Metadata != nil {
		var err error
		metadata, err = json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal turn metadata: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_sessions (id, title)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
	`, sessionID, sessionTitle(turn.Content))
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", sessionID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_turns (session_id, turn_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, turn.ID, string(turn.Role), turn.Content, metadata, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
