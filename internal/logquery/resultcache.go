package logquery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"logforensics/pkg/types"
)

// L2Store is the interface a shared, cross-process metadata store must
// satisfy for C2's optional L2 tier, mirrored on cache.L2Store. No concrete
// implementation ships (see DESIGN.md): a nil L2Store runs ResultCache
// L1-only, which is the only deployment shape exercised today.
type L2Store interface {
	// Get returns the stored entry for key, or ok=false on miss.
	Get(ctx context.Context, key string) (entry types.LokiCacheEntry, ok bool, err error)
	// Set stores entry under key.
	Set(ctx context.Context, key string, entry types.LokiCacheEntry) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// ResultCache is C2's two-tier metadata cache described in spec.md section
// 4.2: an in-process map (L1) in front of the JSON sidecar files persisted
// under dir, with an optional shared store (L2) consulted on L1 miss. A
// stale entry (backing file removed out from under it) self-heals to a
// miss at whichever tier observes it, mirroring types.LokiCacheEntry's
// contract. Shaped directly on internal/cache.Gateway's L1+L2 split, scaled
// down: this tier stores small metadata records rather than LLM response
// bodies, so a plain mutex-guarded map stands in for the Gateway's
// LRU+TTL l1Store.
type ResultCache struct {
	dir string

	mu    sync.Mutex
	index map[string]types.LokiCacheEntry

	l2 L2Store
}

// NewResultCache creates (if needed) dir and returns a ResultCache rooted
// there. l2 may be nil, meaning L1-only operation.
func NewResultCache(dir string, l2 L2Store) (*ResultCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ResultCache{dir: dir, index: make(map[string]types.LokiCacheEntry), l2: l2}, nil
}

// Lookup returns the cached entry for key. It consults the in-memory L1 map
// first, then the local sidecar file on disk (which survives a process
// restart that empties L1), then the optional shared L2 store. Any hit
// below L1 back-fills it. Every tier self-heals to a miss if the backing
// result file no longer exists.
func (c *ResultCache) Lookup(key string) (types.LokiCacheEntry, bool) {
	if entry, ok := c.probeL1(key); ok {
		return entry, true
	}

	if entry, ok := c.probeDisk(key); ok {
		c.setL1(key, entry)
		return entry, true
	}

	if c.l2 != nil {
		if entry, ok := c.probeL2(key); ok {
			c.setL1(key, entry)
			return entry, true
		}
	}

	return types.LokiCacheEntry{}, false
}

func (c *ResultCache) probeL1(key string) (types.LokiCacheEntry, bool) {
	c.mu.Lock()
	entry, ok := c.index[key]
	c.mu.Unlock()
	if !ok {
		return types.LokiCacheEntry{}, false
	}
	return c.verifyOnDisk(key, entry)
}

// probeDisk reads the sidecar metadata file directly, for entries that
// predate this process (or this in-memory index), and self-heals the
// absence of either the metadata file or the result file to a miss.
func (c *ResultCache) probeDisk(key string) (types.LokiCacheEntry, bool) {
	raw, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return types.LokiCacheEntry{}, false
	}
	var entry types.LokiCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return types.LokiCacheEntry{}, false
	}
	return c.verifyOnDisk(key, entry)
}

func (c *ResultCache) probeL2(key string) (types.LokiCacheEntry, bool) {
	entry, ok, err := c.l2.Get(context.Background(), key)
	if err != nil || !ok {
		return types.LokiCacheEntry{}, false
	}
	return c.verifyOnDisk(key, entry)
}

// verifyOnDisk re-stats the backing file so a record whose file vanished
// out from under the index (cleared cache dir, manual cleanup) reports a
// miss instead of a false hit, per types.LokiCacheEntry's contract.
func (c *ResultCache) verifyOnDisk(key string, entry types.LokiCacheEntry) (types.LokiCacheEntry, bool) {
	path := filepath.Join(c.dir, CacheFileName(key))
	info, err := os.Stat(path)
	if err != nil {
		c.mu.Lock()
		delete(c.index, key)
		c.mu.Unlock()
		return types.LokiCacheEntry{}, false
	}
	entry.FilePath = path
	entry.FileSize = info.Size()
	return entry, true
}

func (c *ResultCache) setL1(key string, entry types.LokiCacheEntry) {
	c.mu.Lock()
	c.index[key] = entry
	c.mu.Unlock()
}

// Store persists raw query-response bytes under key, records the sidecar
// metadata entry, and populates both cache tiers. resultCount == 0 must
// never reach here: spec.md's empty-result rule is enforced by the caller
// before Store is invoked.
func (c *ResultCache) Store(key string, raw []byte, resultCount int) (types.LokiCacheEntry, error) {
	path := filepath.Join(c.dir, CacheFileName(key))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return types.LokiCacheEntry{}, err
	}
	entry := types.LokiCacheEntry{
		FilePath:    path,
		CreatedAt:   time.Now(),
		ResultCount: resultCount,
		FileSize:    int64(len(raw)),
	}
	if err := c.writeMeta(key, entry); err != nil {
		return types.LokiCacheEntry{}, err
	}

	c.setL1(key, entry)
	if c.l2 != nil {
		// L1 and disk already hold the authoritative copy; a failed L2
		// write only costs other replicas a redundant query, not this one.
		_ = c.l2.Set(context.Background(), key, entry)
	}
	return entry, nil
}

// Expired reports whether entry is older than ttl.
func (c *ResultCache) Expired(entry types.LokiCacheEntry, ttl time.Duration) bool {
	return time.Since(entry.CreatedAt) > ttl
}

func (c *ResultCache) metaPath(key string) string {
	return filepath.Join(c.dir, "loki_"+key+".meta.json")
}

func (c *ResultCache) writeMeta(key string, entry types.LokiCacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.metaPath(key), raw, 0o644)
}

// ReadResult reads back the raw cached response bytes for key.
func (c *ResultCache) ReadResult(key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.dir, CacheFileName(key)))
}

// writeFile is a small helper for staging files that live under the cache
// directory but are intentionally kept out of the ResultCache index (the
// empty-result scratch files written by Client.writeUncached).
func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
