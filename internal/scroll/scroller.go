// Package scroll provides windowed access to very large directory
// listings: only a bounded set of entries is resident, batches are
// loaded on demand and prefetched in the scroll direction.
package scroll

import (
	"sort"
	"sync"

	"vfm/internal/vfs"
)

// Config bounds a scroller.
type Config struct {
	ViewportSize      int
	BufferSize        int
	BatchSize         int
	MaxLoadedItems    int
	PredictiveLoading bool
}

// DefaultConfig returns the standard scroller bounds.
func DefaultConfig() Config {
	return Config{
		ViewportSize:      50,
		BufferSize:        25,
		BatchSize:         100,
		MaxLoadedItems:    500,
		PredictiveLoading: true,
	}
}

// Range is a half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len reports the number of indices covered.
func (r Range) Len() int { return r.End - r.Start }

// Stats snapshots scroller occupancy.
type Stats struct {
	Total        int
	Provisional  bool
	Loaded       int
	VisibleStart int
	VisibleEnd   int
	Evictions    int64
}

// VirtualScroller tracks a visible window over an ordered entry
// sequence and keeps a sparse map of loaded entries around it. It never
// performs I/O itself; the Manager feeds it through SetEntries.
type VirtualScroller struct {
	mu  sync.RWMutex
	cfg Config

	total       int
	provisional bool
	loaded      map[int]vfs.Entry

	visibleStart int
	direction    int // +1 scrolling down, -1 up, 0 unknown
	evictions    int64
}

// New creates a scroller with no known content.
func New(cfg Config) *VirtualScroller {
	def := DefaultConfig()
	if cfg.ViewportSize <= 0 {
		cfg.ViewportSize = def.ViewportSize
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxLoadedItems <= 0 {
		cfg.MaxLoadedItems = def.MaxLoadedItems
	}
	return &VirtualScroller{
		cfg:    cfg,
		loaded: make(map[int]vfs.Entry),
	}
}

// SetTotal records the item count. Remote listings may refine a
// provisional total as batches arrive; a shrunken total drops loaded
// entries past the new end.
func (s *VirtualScroller) SetTotal(total int, provisional bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total < s.total {
		for i := range s.loaded {
			if i >= total {
				delete(s.loaded, i)
			}
		}
	}
	s.total = total
	s.provisional = provisional
	s.clampLocked()
}

// Total returns the item count and whether it is still provisional.
func (s *VirtualScroller) Total() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, s.provisional
}

// ScrollTo moves the viewport so index is its first visible row.
func (s *VirtualScroller) ScrollTo(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case index > s.visibleStart:
		s.direction = 1
	case index < s.visibleStart:
		s.direction = -1
	}
	s.visibleStart = index
	s.clampLocked()
}

// ScrollBy moves the viewport by delta rows.
func (s *VirtualScroller) ScrollBy(delta int) {
	s.mu.RLock()
	start := s.visibleStart
	s.mu.RUnlock()
	s.ScrollTo(start + delta)
}

func (s *VirtualScroller) clampLocked() {
	maxStart := s.total - s.cfg.ViewportSize
	if maxStart < 0 {
		maxStart = 0
	}
	if s.visibleStart > maxStart {
		s.visibleStart = maxStart
	}
	if s.visibleStart < 0 {
		s.visibleStart = 0
	}
}

// VisibleRange returns the viewport interval.
func (s *VirtualScroller) VisibleRange() Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleRangeLocked()
}

func (s *VirtualScroller) visibleRangeLocked() Range {
	end := s.visibleStart + s.cfg.ViewportSize
	if end > s.total {
		end = s.total
	}
	return Range{Start: s.visibleStart, End: end}
}

// windowLocked is the viewport extended by the buffer on both sides.
func (s *VirtualScroller) windowLocked() Range {
	start := s.visibleStart - s.cfg.BufferSize
	if start < 0 {
		start = 0
	}
	end := s.visibleStart + s.cfg.ViewportSize + s.cfg.BufferSize
	if end > s.total {
		end = s.total
	}
	return Range{Start: start, End: end}
}

// MissingRanges returns the batch-aligned chunks that must be loaded to
// cover the current window, plus one predictive batch beyond it in the
// scroll direction when enabled.
func (s *VirtualScroller) MissingRanges() []Range {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.windowLocked()
	if s.cfg.PredictiveLoading && s.direction != 0 {
		if s.direction > 0 {
			window.End += s.cfg.BatchSize
			if window.End > s.total {
				window.End = s.total
			}
		} else {
			window.Start -= s.cfg.BatchSize
			if window.Start < 0 {
				window.Start = 0
			}
		}
	}

	var out []Range
	batch := s.cfg.BatchSize
	first := (window.Start / batch) * batch
	for start := first; start < window.End; start += batch {
		end := start + batch
		if end > s.total {
			end = s.total
		}
		if s.anyMissingLocked(start, end) {
			out = append(out, Range{Start: start, End: end})
		}
	}
	return out
}

func (s *VirtualScroller) anyMissingLocked(start, end int) bool {
	for i := start; i < end; i++ {
		if _, ok := s.loaded[i]; !ok {
			return true
		}
	}
	return false
}

// SetEntries stores a loaded batch starting at index start, then evicts
// the entries farthest from the viewport once the resident count
// exceeds the bound.
func (s *VirtualScroller) SetEntries(start int, entries []vfs.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range entries {
		idx := start + i
		if s.total > 0 && idx >= s.total {
			break
		}
		s.loaded[idx] = e
	}
	s.evictLocked()
}

// evictLocked removes loaded entries farthest from the window first,
// never touching indices inside it.
func (s *VirtualScroller) evictLocked() {
	excess := len(s.loaded) - s.cfg.MaxLoadedItems
	if excess <= 0 {
		return
	}
	window := s.windowLocked()

	outside := make([]int, 0, len(s.loaded))
	for i := range s.loaded {
		if i < window.Start || i >= window.End {
			outside = append(outside, i)
		}
	}
	sort.Slice(outside, func(a, b int) bool {
		return distance(outside[a], window) > distance(outside[b], window)
	})
	for _, i := range outside {
		if excess <= 0 {
			break
		}
		delete(s.loaded, i)
		s.evictions++
		excess--
	}
}

func distance(i int, window Range) int {
	if i < window.Start {
		return window.Start - i
	}
	if i >= window.End {
		return i - window.End + 1
	}
	return 0
}

// EntryAt returns the entry at index if it is loaded; callers render a
// placeholder otherwise and wait for the manager to fill it.
func (s *VirtualScroller) EntryAt(index int) (vfs.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.loaded[index]
	return e, ok
}

// LoadedCount reports the resident entry count.
func (s *VirtualScroller) LoadedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.loaded)
}

// Reset drops all loaded entries and state, keeping the configuration.
func (s *VirtualScroller) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = make(map[int]vfs.Entry)
	s.total = 0
	s.provisional = false
	s.visibleStart = 0
	s.direction = 0
}

// Stats snapshots occupancy for diagnostics.
func (s *VirtualScroller) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vis := s.visibleRangeLocked()
	return Stats{
		Total:        s.total,
		Provisional:  s.provisional,
		Loaded:       len(s.loaded),
		VisibleStart: vis.Start,
		VisibleEnd:   vis.End,
		Evictions:    s.evictions,
	}
}
