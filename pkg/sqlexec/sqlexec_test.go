package sqlexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestExecutor(t *testing.T) *SQLiteExecutor {
	t.Helper()
	e, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() }) //nolint:errcheck

	_, err = e.DB().Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);
		INSERT INTO users (id, email) VALUES (1, 'a@example.com'), (2, 'b@example.com');
	`)
	require.NoError(t, err)
	return e
}

func TestQueryRowsAsMaps(t *testing.T) {
	e := openTestExecutor(t)

	result, err := e.Query(context.Background(), "SELECT id, email FROM users ORDER BY id")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, int64(1), result.Rows[0]["id"])
	assert.Equal(t, "a@example.com", result.Rows[0]["email"])
	assert.Equal(t, int64(2), result.Rows[1]["id"])
}

func TestQueryWithArgs(t *testing.T) {
	e := openTestExecutor(t)

	result, err := e.Query(context.Background(), "SELECT email FROM users WHERE id = ?", 2)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "b@example.com", result.Rows[0]["email"])
}

func TestQueryNoRows(t *testing.T) {
	e := openTestExecutor(t)

	result, err := e.Query(context.Background(), "SELECT * FROM users WHERE id = ?", 99)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
}

func TestQueryError(t *testing.T) {
	e := openTestExecutor(t)

	_, err := e.Query(context.Background(), "SELECT * FROM missing_table")
	assert.Error(t, err)
}
