package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Turn.
type Role string

const (
	// RoleUser marks a turn written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the generation adapter.
	RoleAssistant Role = "assistant"
	// RoleSystem marks an injected system turn.
	RoleSystem Role = "system"
)

// Turn is one message within a session's history. A Turn is owned
// exclusively by its session and is never shared across sessions.
type Turn struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTurn builds a Turn with a fresh ID and timestamp.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Store holds short-term conversational history per session.
//
// Load returns the session's turns in append order; an unknown session
// yields an empty slice, not an error. Append must be atomic with
// respect to concurrent appends to the same session and must preserve
// append order; a Load immediately following an Append by the same
// caller observes that turn. Sessions are created lazily on first
// append. The core never deletes sessions.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turn Turn) error
}

// sessionTitle derives a short session title from the first user
// message, the way the chat history UI labels new conversations.
func sessionTitle(content string) string {
	const maxTitle = 50
	if content == "" {
		return "New Chat"
	}
	runes := []rune(content)
	if len(runes) > maxTitle {
		return string(runes[:maxTitle])
	}
	return content
}
