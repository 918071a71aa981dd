package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()

	conn, err := Open(filepath.Join(t.TempDir(), "pllm.db"))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	for _, table := range []string{"runs", "iterations", "events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pllm.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	v, err := Version(second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}
