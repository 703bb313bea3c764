package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLoadUnknownSession(t *testing.T) {
	store := NewMemoryStore()

	turns, err := store.Load(context.Background(), "never-seen")
	assert.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStoreAppendOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const n = 10
	for i := 0; i < n; i++ {
		turn := NewTurn(RoleUser, fmt.Sprintf("message %d", i))
		require.NoError(t, store.Append(ctx, "s1", turn))
	}

	turns, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, n)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("message %d", i), turn.Content)
	}
}

func TestMemoryStoreReadYourWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	turn := NewTurn(RoleUser, "hello")
	require.NoError(t, store.Append(ctx, "s1", turn))

	turns, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, turn.ID, turns[0].ID)
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				turn := NewTurn(RoleUser, fmt.Sprintf("w%d-%d", w, i))
				assert.NoError(t, store.Append(ctx, "shared", turn))
			}
		}(w)
	}
	wg.Wait()

	turns, err := store.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, turns, writers*perWriter)

	// No interleaved partial writes: every stored turn is intact.
	for _, turn := range turns {
		assert.NotEmpty(t, turn.ID)
		assert.Regexp(t, `^w\d+-\d+$`, turn.Content)
	}
}

func TestMemoryStoreSessionsIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", NewTurn(RoleUser, "for a")))
	require.NoError(t, store.Append(ctx, "b", NewTurn(RoleUser, "for b")))

	turnsA, err := store.Load(ctx, "a")
	require.NoError(t, err)
	turnsB, err := store.Load(ctx, "b")
	require.NoError(t, err)

	require.Len(t, turnsA, 1)
	require.Len(t, turnsB, 1)
	assert.Equal(t, "for a", turnsA[0].Content)
	assert.Equal(t, "for b", turnsB[0].Content)
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", NewTurn(RoleUser, "original")))

	turns, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	turns[0].Content = "mutated"

	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "New Chat", sessionTitle(""))
	assert.Equal(t, "short", sessionTitle("short"))

	long := ""
	for i := 0; i < 60; i++ {
		long += "x"
	}
	assert.Len(t, sessionTitle(long), 50)
}
