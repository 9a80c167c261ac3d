// Package cache fronts the virtual file system with a bounded directory
// cache: LRU ordering, TTL expiry, a memory ceiling and single-flight
// loading, plus a background refresher for frequently visited paths.
package cache

import (
	"container/list"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vfm/internal/vfs"
)

// Loader produces the entries for one directory, ultimately a
// VirtualFileSystem.ListEntries call.
type Loader func(ctx context.Context) ([]vfs.Entry, error)

// Config bounds the cache.
type Config struct {
	MaxEntries              int
	TTL                     time.Duration
	MaxMemoryBytes          int64
	FrequentAccessThreshold int
}

// DefaultConfig returns the standard cache bounds.
func DefaultConfig() Config {
	return Config{
		MaxEntries:              1000,
		TTL:                     5 * time.Minute,
		MaxMemoryBytes:          100 * 1024 * 1024,
		FrequentAccessThreshold: 5,
	}
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Refreshes   int64
	Entries     int
	MemoryBytes int64
}

type cachedDir struct {
	path        vfs.Path
	entries     []vfs.Entry
	cachedAt    time.Time
	modTime     time.Time // best-effort snapshot, zero when unavailable
	accessCount int
	size        int64
	loader      Loader
	elem        *list.Element
}

// DirectoryCache is safe for concurrent use. Entries are keyed by the
// full Path value, LRU order lives in a separate list (front is most
// recent).
type DirectoryCache struct {
	mu      sync.Mutex
	entries map[vfs.Path]*cachedDir
	lru     *list.List
	memory  int64

	cfg    Config
	group  singleflight.Group
	logger *zap.Logger

	// probe returns the directory's current modification time when the
	// backend exposes one cheaply; nil results fall back to TTL-only
	// staleness.
	probe func(p vfs.Path) (time.Time, bool)

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	refreshes atomic.Int64
}

// New creates an empty cache.
func New(cfg Config, logger *zap.Logger) *DirectoryCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.MaxMemoryBytes <= 0 {
		cfg.MaxMemoryBytes = DefaultConfig().MaxMemoryBytes
	}
	if cfg.FrequentAccessThreshold <= 0 {
		cfg.FrequentAccessThreshold = DefaultConfig().FrequentAccessThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryCache{
		entries: make(map[vfs.Path]*cachedDir),
		lru:     list.New(),
		cfg:     cfg,
		logger:  logger,
		probe:   localModTime,
	}
}

// localModTime answers for local directories only; remote and archive
// paths have no cheap modification probe and rely on TTL.
func localModTime(p vfs.Path) (time.Time, bool) {
	if p.Scheme != vfs.SchemeLocal {
		return time.Time{}, false
	}
	info, err := os.Stat(p.LocalPath)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// GetOrLoad returns the cached entries for path, invoking loader on a
// miss or when the cached copy has gone stale. Concurrent callers for
// the same uncached path share one loader invocation. A loader failure
// is surfaced without disturbing any previously cached copy.
func (c *DirectoryCache) GetOrLoad(ctx context.Context, path vfs.Path, loader Loader) ([]vfs.Entry, error) {
	now := time.Now()

	c.mu.Lock()
	if d, ok := c.entries[path]; ok {
		d.accessCount++
		c.lru.MoveToFront(d.elem)
		if !c.isStale(d, now) {
			entries := copyEntries(d.entries)
			c.mu.Unlock()
			c.hits.Add(1)
			return entries, nil
		}
	}
	c.mu.Unlock()
	c.misses.Add(1)

	v, err, _ := c.group.Do(path.Key(), func() (interface{}, error) {
		entries, lerr := loader(ctx)
		if lerr != nil {
			return nil, lerr
		}
		c.store(path, entries, loader)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return copyEntries(v.([]vfs.Entry)), nil
}

// Get returns the cached entries without loading. Stale copies are
// still returned; ok is false only when nothing is cached at all.
func (c *DirectoryCache) Get(path vfs.Path) ([]vfs.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	d.accessCount++
	c.lru.MoveToFront(d.elem)
	return copyEntries(d.entries), true
}

func (c *DirectoryCache) isStale(d *cachedDir, now time.Time) bool {
	if now.Sub(d.cachedAt) > c.cfg.TTL {
		return true
	}
	if c.probe != nil && !d.modTime.IsZero() {
		if mt, ok := c.probe(d.path); ok && mt.After(d.modTime) {
			return true
		}
	}
	return false
}

func (c *DirectoryCache) store(path vfs.Path, entries []vfs.Entry, loader Loader) {
	size := int64(0)
	for _, e := range entries {
		size += vfs.EstimateEntrySize(e)
	}
	var modTime time.Time
	if c.probe != nil {
		if mt, ok := c.probe(path); ok {
			modTime = mt
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.entries[path]; ok {
		c.memory += size - d.size
		d.entries = entries
		d.cachedAt = time.Now()
		d.modTime = modTime
		d.size = size
		d.loader = loader
		c.lru.MoveToFront(d.elem)
	} else {
		d = &cachedDir{
			path:     path,
			entries:  entries,
			cachedAt: time.Now(),
			modTime:  modTime,
			size:     size,
			loader:   loader,
		}
		d.elem = c.lru.PushFront(d)
		c.entries[path] = d
		c.memory += size
	}
	c.evictLocked()
}

// evictLocked drops LRU entries until both bounds hold again.
func (c *DirectoryCache) evictLocked() {
	for len(c.entries) > c.cfg.MaxEntries || c.memory > c.cfg.MaxMemoryBytes {
		back := c.lru.Back()
		if back == nil {
			return
		}
		d := back.Value.(*cachedDir)
		c.removeLocked(d)
		c.evictions.Add(1)
		c.logger.Debug("evicted directory", zap.String("path", d.path.String()))
	}
}

func (c *DirectoryCache) removeLocked(d *cachedDir) {
	c.lru.Remove(d.elem)
	delete(c.entries, d.path)
	c.memory -= d.size
}

// Invalidate drops one path immediately.
func (c *DirectoryCache) Invalidate(path vfs.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.entries[path]; ok {
		c.removeLocked(d)
	}
}

// InvalidateMatching drops every cached path the predicate selects, e.g.
// all listings inside one archive file.
func (c *DirectoryCache) InvalidateMatching(match func(vfs.Path) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, d := range c.entries {
		if match(path) {
			c.removeLocked(d)
		}
	}
}

// InvalidateAll clears the cache.
func (c *DirectoryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[vfs.Path]*cachedDir)
	c.lru.Init()
	c.memory = 0
}

// Refresh re-lists one cached path with its stored loader. The old copy
// stays servable until the new one is ready, then is swapped in. A
// failure leaves the old copy untouched.
func (c *DirectoryCache) Refresh(ctx context.Context, path vfs.Path) error {
	c.mu.Lock()
	d, ok := c.entries[path]
	var loader Loader
	if ok {
		loader = d.loader
	}
	c.mu.Unlock()
	if !ok || loader == nil {
		return nil
	}

	entries, err := loader(ctx)
	if err != nil {
		c.logger.Warn("background refresh failed", zap.String("path", path.String()), zap.Error(err))
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.store(path, entries, loader)
	c.refreshes.Add(1)
	return nil
}

// refreshCandidates returns the frequently accessed paths close to TTL
// expiry, the ones worth re-listing ahead of demand.
func (c *DirectoryCache) refreshCandidates(now time.Time) []vfs.Path {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []vfs.Path
	for path, d := range c.entries {
		if d.accessCount < c.cfg.FrequentAccessThreshold {
			continue
		}
		remaining := c.cfg.TTL - now.Sub(d.cachedAt)
		if remaining < c.cfg.TTL/2 {
			out = append(out, path)
		}
	}
	return out
}

// Stats snapshots the counters.
func (c *DirectoryCache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	memory := c.memory
	c.mu.Unlock()
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Refreshes:   c.refreshes.Load(),
		Entries:     entries,
		MemoryBytes: memory,
	}
}

// Len reports the number of cached directories.
func (c *DirectoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func copyEntries(entries []vfs.Entry) []vfs.Entry {
	out := make([]vfs.Entry, len(entries))
	copy(out, entries)
	return out
}
