// Package tasks runs background work (cache refresh, predictive loads) on
// a fixed pool of workers so bursts never spawn unbounded goroutines.
package tasks

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is one unit of background work. The context is cancelled when the
// pool shuts down; tasks must honor it.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool. Submissions after Close are dropped.
type Pool struct {
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
}

// NewPool starts workers goroutines draining a queue of queueSize pending
// tasks.
func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		if p.ctx.Err() != nil {
			p.completed.Add(1)
			continue
		}
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.logger.Error("background task panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	task(p.ctx)
}

// Submit queues a task. It reports false when the queue is full or the
// pool is closed; callers treat a dropped background task as a no-op.
func (p *Pool) Submit(task Task) bool {
	// The read lock keeps Close from closing the queue mid-send.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	default:
		p.logger.Debug("task queue full, dropping submission")
		return false
	}
}

// Close cancels in-flight task contexts and waits for the workers to
// drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cancel()
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

// Pending reports queued-but-unfinished tasks.
func (p *Pool) Pending() int {
	return int(p.submitted.Load() - p.completed.Load())
}
