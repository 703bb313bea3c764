package session

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreAppend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)

	turn := NewTurn(RoleUser, "what is our vacation policy?")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
		WithArgs("s1", "what is our vacation policy?").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_turns")).
		WithArgs("s1", turn.ID, "user", turn.Content, []byte(nil), turn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.Append(context.Background(), "s1", turn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)

	createdAt := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"turn_id", "role", "content", "metadata", "created_at"}).
		AddRow("t1", "user", "hello", []byte(nil), createdAt).
		AddRow("t2", "assistant", "hi there", []byte(`{"citations":["company/handbook"]}`), createdAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT turn_id, role, content, metadata, created_at")).
		WithArgs("s1").
		WillReturnRows(rows)

	turns, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Nil(t, turns[0].Metadata)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Contains(t, turns[1].Metadata, "citations")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadUnknownSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)

	rows := pgxmock.NewRows([]string{"turn_id", "role", "content", "metadata", "created_at"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT turn_id, role, content, metadata, created_at")).
		WithArgs("unknown").
		WillReturnRows(rows)

	turns, err := store.Load(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Empty(t, turns)
}

func TestPostgresStoreAppendRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)
	turn := NewTurn(RoleUser, "hello")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
		WithArgs("s1", "hello").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = store.Append(context.Background(), "s1", turn)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
