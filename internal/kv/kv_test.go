package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/kegsync/internal/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := Open(context.Background(), path, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "descver:personal", "42"))

	got, err := s.Get(ctx, "descver:personal")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	// overwrite
	require.NoError(t, s.Put(ctx, "descver:personal", "43"))
	got, err = s.Get(ctx, "descver:personal")
	require.NoError(t, err)
	assert.Equal(t, "43", got)
}

func TestGet_Missing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "UPLOAD:f-1", `{"path":"/tmp/a"}`))
	require.NoError(t, s.Delete(ctx, "UPLOAD:f-1"))
	require.NoError(t, s.Delete(ctx, "UPLOAD:f-1"))

	_, err := s.Get(ctx, "UPLOAD:f-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPrefix_OnlyMatching(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "UPLOAD:f-1", "a"))
	require.NoError(t, s.Put(ctx, "UPLOAD:f-2", "b"))
	require.NoError(t, s.Put(ctx, "DOWNLOAD:f-3", "c"))

	got, err := s.ListPrefix(ctx, "UPLOAD:")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"UPLOAD:f-1": "a", "UPLOAD:f-2": "b"}, got)
}

func TestOpen_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := Open(ctx, path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, path, logger.Nop())
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
