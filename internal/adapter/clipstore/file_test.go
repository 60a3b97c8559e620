package clipstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache_MissingFileIsEmpty(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "posted_clips.txt"))

	ids, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileCache_SaveWritesNewlineTerminatedIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted_clips.txt")
	cache := NewFileCache(path)

	require.NoError(t, cache.Save(context.Background(), []string{"c1", "c2"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "c1\nc2\n", string(data))
}

func TestFileCache_SaveOverwritesAndLoadKeepsOrder(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "posted_clips.txt"))
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, []string{"a", "b"}))
	require.NoError(t, cache.Save(ctx, []string{"c", "a", "b"}))

	ids, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestFileCache_LoadSkipsBlankLinesAndCarriageReturns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted_clips.txt")
	require.NoError(t, os.WriteFile(path, []byte("c1\r\n\n  \nc2"), 0o600))

	ids, err := NewFileCache(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestFileCache_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted_clips.txt")
	ctx := context.Background()

	require.NoError(t, NewFileCache(path).Save(ctx, []string{"c1"}))

	ids, err := NewFileCache(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestFileCache_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(filepath.Join(dir, "posted_clips.txt"))

	require.NoError(t, cache.Save(context.Background(), []string{"c1"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "posted_clips.txt", entries[0].Name())
}

func TestFileCache_SaveFailsForMissingDirectory(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "nope", "posted_clips.txt"))
	assert.Error(t, cache.Save(context.Background(), []string{"c1"}))
}

func TestFileCache_SaveHonoursCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted_clips.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, NewFileCache(path).Save(ctx, []string{"c1"}), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewFileCache_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewFileCache("").Path())
}
