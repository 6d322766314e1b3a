// ABOUTME: Tests for the SQLite message registry and document counters
// ABOUTME: Uses a temp-dir database per test

package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docbridge.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessageRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("register and find", func(t *testing.T) {
		s := testStore(t)
		require.NoError(t, s.RegisterMessage(ctx, 1, 10, 10))
		require.NoError(t, s.RegisterMessage(ctx, 1, 15, 10))

		root, ok, err := s.FindRoot(ctx, 1, 15)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(10), root)
	})

	t.Run("unknown message reports not found", func(t *testing.T) {
		s := testStore(t)
		_, ok, err := s.FindRoot(ctx, 1, 99)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("registration is idempotent", func(t *testing.T) {
		s := testStore(t)
		require.NoError(t, s.RegisterMessage(ctx, 1, 10, 10))
		require.NoError(t, s.RegisterMessage(ctx, 1, 10, 10))

		n, err := s.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("chats are isolated", func(t *testing.T) {
		s := testStore(t)
		require.NoError(t, s.RegisterMessage(ctx, 1, 10, 10))
		require.NoError(t, s.RegisterMessage(ctx, 2, 10, 77))

		root, ok, err := s.FindRoot(ctx, 2, 10)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(77), root)
	})

	t.Run("delete root prunes the whole conversation", func(t *testing.T) {
		s := testStore(t)
		require.NoError(t, s.RegisterMessage(ctx, 1, 10, 10))
		require.NoError(t, s.RegisterMessage(ctx, 1, 15, 10))
		require.NoError(t, s.RegisterMessage(ctx, 1, 20, 20))

		require.NoError(t, s.DeleteRoot(ctx, 1, 10))

		_, ok, err := s.FindRoot(ctx, 1, 15)
		require.NoError(t, err)
		assert.False(t, ok)

		root, ok, err := s.FindRoot(ctx, 1, 20)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(20), root)
	})
}

func TestDocumentCounters(t *testing.T) {
	ctx := context.Background()

	t.Run("counters are sequential and zero-padded", func(t *testing.T) {
		s := testStore(t)

		n1, err := s.NextDocumentNumber(ctx, "COT", 2026)
		require.NoError(t, err)
		assert.Equal(t, "COT-2026-001", n1)

		n2, err := s.NextDocumentNumber(ctx, "COT", 2026)
		require.NoError(t, err)
		assert.Equal(t, "COT-2026-002", n2)
	})

	t.Run("counters are independent per type and year", func(t *testing.T) {
		s := testStore(t)

		_, err := s.NextDocumentNumber(ctx, "COT", 2026)
		require.NoError(t, err)

		n, err := s.NextDocumentNumber(ctx, "REC", 2026)
		require.NoError(t, err)
		assert.Equal(t, "REC-2026-001", n)

		n, err = s.NextDocumentNumber(ctx, "COT", 2027)
		require.NoError(t, err)
		assert.Equal(t, "COT-2027-001", n)
	})

	t.Run("last numbers summarize a year", func(t *testing.T) {
		s := testStore(t)

		for i := 0; i < 3; i++ {
			_, err := s.NextDocumentNumber(ctx, "COT", 2026)
			require.NoError(t, err)
		}
		_, err := s.NextDocumentNumber(ctx, "PRES", 2026)
		require.NoError(t, err)
		_, err = s.NextDocumentNumber(ctx, "COT", 2025)
		require.NoError(t, err)

		last, err := s.LastDocumentNumbers(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"COT":  "COT-2026-003",
			"PRES": "PRES-2026-001",
		}, last)
	})

	t.Run("empty year yields empty map", func(t *testing.T) {
		s := testStore(t)
		last, err := s.LastDocumentNumbers(ctx, 2030)
		require.NoError(t, err)
		assert.Empty(t, last)
	})
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "COT-2026-007", FormatNumber("COT", 2026, 7))
	assert.Equal(t, "CARTA-2026-120", FormatNumber("CARTA", 2026, 120))
}
