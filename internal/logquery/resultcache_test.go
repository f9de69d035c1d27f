package logquery

import (
	"context"
	"os"
	"testing"
	"time"

	"logforensics/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCacheStoreAndLookup(t *testing.T) {
	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)

	entry, err := cache.Store("abc", []byte(`{"data":{"result":[{}]}}`), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ResultCount)

	got, ok := cache.Lookup("abc")
	require.True(t, ok)
	assert.Equal(t, entry.FilePath, got.FilePath)
	assert.Equal(t, 1, got.ResultCount)
}

func TestResultCacheLookupMissingIsSelfHealing(t *testing.T) {
	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)

	_, ok := cache.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestResultCacheExpired(t *testing.T) {
	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)
	entry, err := cache.Store("abc", []byte(`{}`), 1)
	require.NoError(t, err)

	assert.False(t, cache.Expired(entry, time.Hour))

	entry.CreatedAt = time.Now().Add(-2 * time.Hour)
	assert.True(t, cache.Expired(entry, time.Hour))
}

func TestResultCacheLookupHitsL1BeforeTouchingDisk(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewResultCache(dir, nil)
	require.NoError(t, err)

	entry, err := cache.Store("abc", []byte(`{}`), 1)
	require.NoError(t, err)

	// Delete the sidecar metadata file but keep the result file: only the
	// in-memory L1 entry written by Store can satisfy the lookup now.
	require.NoError(t, os.Remove(cache.metaPath("abc")))

	got, ok := cache.Lookup("abc")
	require.True(t, ok, "L1 entry populated by Store must serve the lookup without re-reading the sidecar file")
	assert.Equal(t, entry.ResultCount, got.ResultCount)
}

func TestResultCacheLookupFallsBackToDiskAfterRestart(t *testing.T) {
	dir := t.TempDir()
	first, err := NewResultCache(dir, nil)
	require.NoError(t, err)
	_, err = first.Store("abc", []byte(`{}`), 3)
	require.NoError(t, err)

	// A fresh ResultCache over the same directory models a process restart:
	// its L1 map starts empty, so the hit must come from the disk tier.
	second, err := NewResultCache(dir, nil)
	require.NoError(t, err)

	got, ok := second.Lookup("abc")
	require.True(t, ok)
	assert.Equal(t, 3, got.ResultCount)
}

func TestResultCacheLookupSelfHealsWhenResultFileRemoved(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewResultCache(dir, nil)
	require.NoError(t, err)
	entry, err := cache.Store("abc", []byte(`{}`), 1)
	require.NoError(t, err)

	require.NoError(t, os.Remove(entry.FilePath))

	_, ok := cache.Lookup("abc")
	assert.False(t, ok, "a removed result file must invalidate the L1 entry, not return a stale hit")
}

type fakeL2Store struct {
	entries map[string]types.LokiCacheEntry
}

func newFakeL2Store() *fakeL2Store {
	return &fakeL2Store{entries: make(map[string]types.LokiCacheEntry)}
}

func (f *fakeL2Store) Get(_ context.Context, key string) (types.LokiCacheEntry, bool, error) {
	entry, ok := f.entries[key]
	return entry, ok, nil
}

func (f *fakeL2Store) Set(_ context.Context, key string, entry types.LokiCacheEntry) error {
	f.entries[key] = entry
	return nil
}

func (f *fakeL2Store) Delete(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func TestResultCacheLookupConsultsL2OnSharedMiss(t *testing.T) {
	// Models two processes sharing the same mounted cache directory plus a
	// shared metadata store: the writer's sidecar metadata file is absent
	// (pretend it never replicated), so only L2 can name the entry. The
	// result file itself is present on the shared mount, so the L2 hit
	// verifies and backfills the reader's own L1.
	dir := t.TempDir()
	l2 := newFakeL2Store()

	writer, err := NewResultCache(dir, nil)
	require.NoError(t, err)
	path := writer.dir + "/" + CacheFileName("abc")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	entry := types.LokiCacheEntry{FilePath: path, CreatedAt: time.Now(), ResultCount: 7, FileSize: 2}
	require.NoError(t, l2.Set(context.Background(), "abc", entry))

	reader, err := NewResultCache(dir, l2)
	require.NoError(t, err)

	got, ok := reader.Lookup("abc")
	require.True(t, ok, "L2 hit with a verifiable on-disk result file must succeed")
	assert.Equal(t, 7, got.ResultCount)

	got2, ok := reader.probeL1("abc")
	require.True(t, ok, "an L2 hit must back-fill the reader's L1")
	assert.Equal(t, 7, got2.ResultCount)
}
