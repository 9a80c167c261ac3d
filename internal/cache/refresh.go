package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vfm/internal/tasks"
)

// Refresher periodically re-lists frequently accessed directories before
// their TTL runs out, so hot paths stay warm without a foreground miss.
// It is owned by the cache's creator and stops cleanly via Close.
type Refresher struct {
	cache  *DirectoryCache
	pool   *tasks.Pool
	period time.Duration
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher builds a refresher scanning every period (zero or less
// defaults to half the cache TTL). Start must be called to begin
// scanning.
func NewRefresher(c *DirectoryCache, pool *tasks.Pool, period time.Duration, logger *zap.Logger) *Refresher {
	if period <= 0 {
		period = c.cfg.TTL / 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{cache: c, pool: pool, period: period, logger: logger}
}

// Start launches the scan loop.
func (r *Refresher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.scan(ctx, now)
		}
	}
}

func (r *Refresher) scan(ctx context.Context, now time.Time) {
	candidates := r.cache.refreshCandidates(now)
	if len(candidates) == 0 {
		return
	}
	r.logger.Debug("scheduling cache refreshes", zap.Int("count", len(candidates)))
	for _, path := range candidates {
		p := path
		r.pool.Submit(func(taskCtx context.Context) {
			if ctx.Err() != nil || taskCtx.Err() != nil {
				return
			}
			r.cache.Refresh(taskCtx, p)
		})
	}
}

// Close stops the loop and waits for it to exit. Pending pool tasks are
// the pool's concern.
func (r *Refresher) Close() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}
