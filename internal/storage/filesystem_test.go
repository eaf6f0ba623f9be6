package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageservice/internal/domain"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func put(t *testing.T, store *FileStore, rel string) string {
	t.Helper()
	path := filepath.Join(store.BasePath(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(rel), 0o644))
	return path
}

func TestWriteCreatesDirectoriesAndRefusesOverwrite(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	path, err := store.Write(ctx, ProviderKey("aliyun", "a.png"), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BasePath(), "images", "aliyun", "a.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = store.Write(ctx, ProviderKey("aliyun", "a.png"), []byte{9})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data, "existing artifact must not be rewritten")
}

func TestWriteRejectsTraversal(t *testing.T) {
	store := newStore(t)
	_, err := store.Write(context.Background(), "../escape.png", []byte{1})
	require.Error(t, err)
}

func TestWriteHonoursCancelledContext(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Write(ctx, "images/x.png", []byte{1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocatePrefersFlatDirectory(t *testing.T) {
	store := newStore(t)
	flat := put(t, store, "images/pic.png")
	put(t, store, "images/aliyun/pic.png")
	put(t, store, "archive/pic.png")

	got, err := store.Locate("pic.png", []string{"aliyun", "liblibai"})
	require.NoError(t, err)
	assert.Equal(t, flat, got)
}

func TestLocateChecksProvidersInOrderBeforeFallback(t *testing.T) {
	store := newStore(t)
	put(t, store, "aaa/pic.png")
	put(t, store, "images/liblibai/pic.png")
	wanted := put(t, store, "images/aliyun/pic.png")

	got, err := store.Locate("pic.png", []string{"aliyun", "liblibai"})
	require.NoError(t, err)
	assert.Equal(t, wanted, got)

	got, err = store.Locate("pic.png", []string{"liblibai", "aliyun"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BasePath(), "images", "liblibai", "pic.png"), got)
}

func TestLocateFallsBackToRecursiveSearch(t *testing.T) {
	store := newStore(t)
	deep := put(t, store, "exports/2024/01/pic.png")

	got, err := store.Locate("pic.png", []string{"aliyun"})
	require.NoError(t, err)
	assert.Equal(t, deep, got)
}

func TestLocateNotFound(t *testing.T) {
	store := newStore(t)
	put(t, store, "images/aliyun/other.png")

	_, err := store.Locate("missing.png", []string{"aliyun"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLocateRejectsPathNames(t *testing.T) {
	store := newStore(t)
	put(t, store, "images/aliyun/pic.png")

	for _, name := range []string{"", "..", "aliyun/pic.png", "../pic.png", `aliyun\pic.png`} {
		_, err := store.Locate(name, []string{"aliyun"})
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrArtifactNameInvalid), name)
	}
}
