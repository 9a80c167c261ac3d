package scroll

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"vfm/internal/cache"
	"vfm/internal/tasks"
	"vfm/internal/vfs"
)

// Source supplies one batch of entries plus the current total. Totals
// from remote listings may be refined across calls.
type Source interface {
	Batch(ctx context.Context, start, count int) ([]vfs.Entry, int, error)
}

// Manager drives a VirtualScroller asynchronously: scroll events mark
// the needed ranges and worker-pool tasks fill them, so index reads
// never block on I/O. The scroller lock is never held across a Source
// call.
type Manager struct {
	scroller *VirtualScroller
	source   Source
	pool     *tasks.Pool
	logger   *zap.Logger

	// onUpdate fires after a batch lands, e.g. to repaint placeholders.
	onUpdate func()

	mu       sync.Mutex
	inflight map[int]bool
}

// NewManager wires a scroller to its source. onUpdate may be nil.
func NewManager(s *VirtualScroller, source Source, pool *tasks.Pool, onUpdate func(), logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		scroller: s,
		source:   source,
		pool:     pool,
		logger:   logger,
		onUpdate: onUpdate,
		inflight: make(map[int]bool),
	}
}

// Scroller exposes the underlying window for index reads.
func (m *Manager) Scroller() *VirtualScroller { return m.scroller }

// ScrollTo moves the viewport and schedules any missing batches.
func (m *Manager) ScrollTo(index int) {
	m.scroller.ScrollTo(index)
	m.Fill()
}

// ScrollBy moves the viewport relatively and schedules missing batches.
func (m *Manager) ScrollBy(delta int) {
	m.scroller.ScrollBy(delta)
	m.Fill()
}

// Bootstrap kicks off loading when the total is still unknown: the
// first batch both fills the top of the window and establishes the
// total. With a known total it behaves like Fill.
func (m *Manager) Bootstrap() {
	if total, _ := m.scroller.Total(); total > 0 {
		m.Fill()
		return
	}
	m.schedule(Range{Start: 0, End: m.scroller.cfg.BatchSize})
}

// Fill schedules loads for every batch the current window still lacks.
// Ranges already being fetched are skipped.
func (m *Manager) Fill() {
	for _, r := range m.scroller.MissingRanges() {
		m.schedule(r)
	}
}

func (m *Manager) schedule(r Range) {
	m.mu.Lock()
	if m.inflight[r.Start] {
		m.mu.Unlock()
		return
	}
	m.inflight[r.Start] = true
	m.mu.Unlock()

	ok := m.pool.Submit(func(ctx context.Context) {
		defer func() {
			m.mu.Lock()
			delete(m.inflight, r.Start)
			m.mu.Unlock()
		}()
		m.load(ctx, r)
	})
	if !ok {
		m.mu.Lock()
		delete(m.inflight, r.Start)
		m.mu.Unlock()
	}
}

func (m *Manager) load(ctx context.Context, r Range) {
	entries, total, err := m.source.Batch(ctx, r.Start, r.Len())
	if err != nil {
		m.logger.Warn("batch load failed",
			zap.Int("start", r.Start), zap.Int("count", r.Len()), zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	m.scroller.SetTotal(total, false)
	m.scroller.SetEntries(r.Start, entries)
	if m.onUpdate != nil {
		m.onUpdate()
	}
}

// CacheSource adapts a cached directory listing into a batch source.
// The first batch triggers the (single-flight) load; later batches
// slice the cached copy.
type CacheSource struct {
	Cache  *cache.DirectoryCache
	Path   vfs.Path
	Loader cache.Loader
}

func (c CacheSource) Batch(ctx context.Context, start, count int) ([]vfs.Entry, int, error) {
	entries, err := c.Cache.GetOrLoad(ctx, c.Path, c.Loader)
	if err != nil {
		return nil, 0, err
	}
	total := len(entries)
	if start >= total {
		return nil, total, nil
	}
	end := start + count
	if end > total {
		end = total
	}
	return entries[start:end], total, nil
}
