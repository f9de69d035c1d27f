// Package cache implements C1, the LLM cache gateway: a two-tier
// content-addressed cache (in-process LRU+TTL L1, optional shared L2) with
// single-flight request coalescing and HTTP-cache-control-like policy
// semantics. L1 is grounded on the teacher's
// pkg/deduplication.DeduplicationManager; single-flight is
// golang.org/x/sync/singleflight, grounded on the pack's
// O-tero-Distributed-Caching-System cache manager.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "logforensics/internal/errors"
	"logforensics/internal/metrics"
	"logforensics/pkg/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// L2Store is the interface a shared, cross-process backing store must
// satisfy. No concrete implementation ships (see DESIGN.md); the gateway
// auto-probes it once at first use and downgrades to L1-only on error.
type L2Store interface {
	// Get returns the stored entry for key, or ok=false on miss.
	Get(ctx context.Context, key string) (entry types.CacheEntry, ok bool, err error)
	// Set stores entry under key with the TTL carried in entry.TTL.
	Set(ctx context.Context, key string, entry types.CacheEntry) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// TryLock attempts an atomic set-if-absent with TTL, returning true if
	// this caller became the lock holder.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock releases a lock previously acquired with TryLock.
	Unlock(ctx context.Context, key string) error
	// Ping is a cheap reachability probe.
	Ping(ctx context.Context) error
}

// ComputeFunc produces the value for a cache miss. cacheable reports whether
// the result should be stored at all (spec.md: "bounded by ... compute's own
// cacheable flag").
type ComputeFunc func(ctx context.Context) (value []byte, cacheable bool, err error)

// Stats is a point-in-time snapshot of gateway counters, returned by
// StatsSnapshot.
type Stats struct {
	L1Size      int
	L1Hits      int64
	L2Hits      int64
	Misses      int64
	Sets        int64
	Evictions   int64
	Coalesced   int64
	L2Reachable bool
	L2LastError string
}

// Gateway is C1: the content-addressed two-tier LLM cache.
type Gateway struct {
	logger *logrus.Logger

	enabled        bool
	namespace      string
	gatewayVersion string
	promptVersion  string
	defaultTTL     time.Duration

	l1 *l1Store
	l2 L2Store

	l2ProbeOnce sync.Once
	l2Available bool
	l2LastErr   string

	sf singleflight.Group

	mu        sync.Mutex
	l1Hits    int64
	l2Hits    int64
	misses    int64
	sets      int64
	coalesced int64

	l2LockPollInterval time.Duration
	l2LockWaitBudget   time.Duration
}

// Config configures the gateway.
type Config struct {
	Enabled        bool
	Namespace      string
	GatewayVersion string
	PromptVersion  string
	L1Size         int
	L1DefaultTTL   time.Duration
	L2AutoProbe    bool
}

// NewGateway constructs a Gateway. l2 may be nil, meaning L1-only operation.
func NewGateway(cfg Config, l2 L2Store, logger *logrus.Logger) *Gateway {
	return &Gateway{
		logger:             logger,
		enabled:            cfg.Enabled,
		namespace:          cfg.Namespace,
		gatewayVersion:     cfg.GatewayVersion,
		promptVersion:      cfg.PromptVersion,
		defaultTTL:         cfg.L1DefaultTTL,
		l1:                 newL1Store(cfg.L1Size),
		l2:                 l2,
		l2LockPollInterval: 50 * time.Millisecond,
		l2LockWaitBudget:   2 * time.Second,
	}
}

// Cached is C1's public operation: compute a value for
// (cacheType, modelID, messages, options), consulting the two-tier cache
// first and coalescing concurrent identical calls.
func (g *Gateway) Cached(ctx context.Context, cacheType, modelID string, messages []types.ChatMessage, options map[string]interface{}, defaultTTL time.Duration, policy types.CachePolicy, compute ComputeFunc) ([]byte, types.CacheDiagnostics, error) {
	key, err := ComputeKey(cacheType, g.effectiveNamespace(policy), modelID, messages, options, g.gatewayVersion, g.promptVersion)
	if err != nil {
		return nil, types.CacheDiagnostics{}, apperrors.CacheError("Cached", err.Error()).Wrap(err)
	}
	diag := types.CacheDiagnostics{KeyPrefix: KeyPrefix(key)}

	ttl := g.resolveTTL(defaultTTL, policy)

	if !g.enabled || !policy.Enabled {
		value, _, err := compute(ctx)
		diag.Status = types.StatusBypass
		if err != nil {
			return nil, diag, err
		}
		return value, diag, nil
	}

	// no_cache forces revalidation: skip both read tiers, but keep going
	// through single-flight and the write-through path so concurrent
	// identical calls still coalesce and the recomputed value lands in the
	// cache (unless no_store forbids it).
	if !policy.NoCache {
		if entry, ok := g.probeL1(key, policy); ok {
			metrics.RecordCacheHit("l1", cacheType)
			diag.Status = types.StatusHitL1
			return entry.ValueBytes, diag, nil
		}

		if g.l2 != nil {
			if entry, ok := g.probeL2(ctx, key, policy); ok {
				metrics.RecordCacheHit("l2", cacheType)
				g.l1.set(key, entry)
				diag.Status = types.StatusHitL2
				return entry.ValueBytes, diag, nil
			}
		}
	}

	metrics.RecordCacheMiss(cacheType)
	g.mu.Lock()
	g.misses++
	g.mu.Unlock()

	value, wasLeader, err := g.computeCoalesced(ctx, key, cacheType, ttl, policy, compute)
	if err != nil {
		return nil, diag, err
	}
	if wasLeader {
		diag.Status = types.StatusMiss
	} else {
		metrics.RecordCacheCoalesced(cacheType)
		g.mu.Lock()
		g.coalesced++
		g.mu.Unlock()
		diag.Status = types.StatusCoalesced
	}
	return value, diag, nil
}

// computeCoalesced runs compute via single-flight: the first caller per key
// is the leader, computes, writes through, and publishes; late callers
// observe the leader's result. When L2 is configured, the leader also
// attempts a distributed lock so cross-process callers coalesce too.
func (g *Gateway) computeCoalesced(ctx context.Context, key, cacheType string, ttl time.Duration, policy types.CachePolicy, compute ComputeFunc) ([]byte, bool, error) {
	type result struct {
		value []byte
		err   error
	}

	v, err, shared := g.sf.Do(key, func() (interface{}, error) {
		if g.l2 != nil {
			acquired, lockErr := g.l2.TryLock(ctx, lockKey(key), 30*time.Second)
			if lockErr == nil && !acquired {
				if entry, ok := g.pollL2ForResult(ctx, key); ok {
					return result{value: entry.ValueBytes}, nil
				}
				// Lock not ours and no result appeared in time: compute anyway.
			}
			if lockErr == nil && acquired {
				defer g.l2.Unlock(ctx, lockKey(key))
			}
		}

		value, cacheable, err := compute(ctx)
		if err != nil {
			return result{err: err}, err
		}
		if cacheable && !policy.NoStore {
			g.writeThrough(ctx, key, cacheType, value, ttl)
		}
		return result{value: value}, nil
	})

	if err != nil {
		return nil, !shared, err
	}
	r := v.(result)
	return r.value, !shared, r.err
}

func lockKey(key string) string { return "lock:" + key }

// pollL2ForResult waits up to l2LockWaitBudget for another process's leader
// to publish a result for key.
func (g *Gateway) pollL2ForResult(ctx context.Context, key string) (types.CacheEntry, bool) {
	deadline := time.Now().Add(g.l2LockWaitBudget)
	ticker := time.NewTicker(g.l2LockPollInterval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return types.CacheEntry{}, false
		case <-ticker.C:
			if entry, ok, err := g.l2.Get(ctx, key); err == nil && ok {
				return entry, true
			}
		}
	}
	return types.CacheEntry{}, false
}

func (g *Gateway) writeThrough(ctx context.Context, key, cacheType string, value []byte, ttl time.Duration) {
	entry := types.CacheEntry{CreatedAt: time.Now(), ValueBytes: value, TTL: ttl}
	g.l1.set(key, entry)
	metrics.RecordCacheSet("l1", cacheType)
	g.mu.Lock()
	g.sets++
	g.mu.Unlock()

	if g.l2 == nil {
		return
	}
	if err := g.l2.Set(ctx, key, entry); err != nil {
		g.logger.WithError(err).WithField("key_prefix", KeyPrefix(key)).Warn("cache: L2 write failed, continuing L1-only")
		return
	}
	metrics.RecordCacheSet("l2", cacheType)
}

func (g *Gateway) probeL1(key string, policy types.CachePolicy) (types.CacheEntry, bool) {
	entry, ok := g.l1.get(key, time.Now())
	if !ok {
		return types.CacheEntry{}, false
	}
	if policy.SMaxAgeSeconds != nil && entry.StaleForSharedHit(time.Now(), *policy.SMaxAgeSeconds) {
		return types.CacheEntry{}, false
	}
	g.mu.Lock()
	g.l1Hits++
	g.mu.Unlock()
	return entry, true
}

func (g *Gateway) probeL2(ctx context.Context, key string, policy types.CachePolicy) (types.CacheEntry, bool) {
	if !g.ensureL2Probed(ctx) {
		return types.CacheEntry{}, false
	}
	entry, ok, err := g.l2.Get(ctx, key)
	if err != nil {
		g.logger.WithError(err).Warn("cache: L2 read failed, downgrading to L1-only for this call")
		return types.CacheEntry{}, false
	}
	if !ok {
		return types.CacheEntry{}, false
	}
	if policy.SMaxAgeSeconds != nil && entry.StaleForSharedHit(time.Now(), *policy.SMaxAgeSeconds) {
		return types.CacheEntry{}, false
	}
	g.mu.Lock()
	g.l2Hits++
	g.mu.Unlock()
	return entry, true
}

// ensureL2Probed performs the one-time bounded-timeout probe described in
// spec.md: failures downgrade to L1-only without raising.
func (g *Gateway) ensureL2Probed(ctx context.Context) bool {
	g.l2ProbeOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := g.l2.Ping(probeCtx); err != nil {
			g.l2Available = false
			g.l2LastErr = err.Error()
			metrics.SetCacheL2PingStatus(false)
			g.logger.WithError(err).Warn("cache: L2 probe failed, operating L1-only")
			return
		}
		g.l2Available = true
		metrics.SetCacheL2PingStatus(true)
	})
	return g.l2Available
}

func (g *Gateway) resolveTTL(defaultTTL time.Duration, policy types.CachePolicy) time.Duration {
	ttl := defaultTTL
	if ttl <= 0 {
		ttl = g.defaultTTL
	}
	if policy.TTLSeconds != nil {
		ttl = time.Duration(*policy.TTLSeconds) * time.Second
	}
	return ttl
}

func (g *Gateway) effectiveNamespace(policy types.CachePolicy) string {
	if policy.Namespace != "" {
		return policy.Namespace
	}
	return g.namespace
}

// Delete removes a single key from both tiers.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	g.l1.delete(key)
	if g.l2 != nil {
		if err := g.l2.Delete(ctx, key); err != nil {
			return apperrors.CacheError("Delete", err.Error()).Wrap(err)
		}
	}
	return nil
}

// ClearL1 empties the in-process tier only.
func (g *Gateway) ClearL1() {
	g.l1.clear()
}

// PingL2 probes L2 reachability on demand (distinct from the lazy
// first-use probe), returning the current error if any.
func (g *Gateway) PingL2(ctx context.Context) error {
	if g.l2 == nil {
		return errors.New("no L2 store configured")
	}
	if err := g.l2.Ping(ctx); err != nil {
		g.l2LastErr = err.Error()
		metrics.SetCacheL2PingStatus(false)
		return err
	}
	metrics.SetCacheL2PingStatus(true)
	return nil
}

// StatsSnapshot returns administrative counters for the /cache/stats endpoint.
func (g *Gateway) StatsSnapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		L1Size:      g.l1.size(),
		L1Hits:      g.l1Hits,
		L2Hits:      g.l2Hits,
		Misses:      g.misses,
		Sets:        g.sets,
		Evictions:   g.l1.evictionCount(),
		Coalesced:   g.coalesced,
		L2Reachable: g.l2Available,
		L2LastError: g.l2LastErr,
	}
}
