// Package watcher turns local file-system events into cache
// invalidations, so externally changed directories are re-listed on the
// next access instead of serving a stale copy until TTL expiry.
package watcher

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"vfm/internal/cache"
	"vfm/internal/vfs"
)

// DirectoryWatcher follows a set of local directories. Events on a file
// invalidate the cached listing of its directory; archive files
// additionally invalidate their cached browse roots.
type DirectoryWatcher struct {
	cache    *cache.DirectoryCache
	archives *vfs.ArchiveProvider // optional
	logger   *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watched map[string]bool
	done    chan struct{}
	stopped bool
}

// New creates a watcher feeding invalidations into c. archives may be
// nil.
func New(c *cache.DirectoryCache, archives *vfs.ArchiveProvider, logger *zap.Logger) (*DirectoryWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &DirectoryWatcher{
		cache:    c,
		archives: archives,
		logger:   logger,
		fsw:      fsw,
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch registers a local directory. Watching twice is a no-op.
func (w *DirectoryWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	w.logger.Debug("watching directory", zap.String("dir", dir))
	return nil
}

// Unwatch removes a directory from the watch set.
func (w *DirectoryWatcher) Unwatch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watched[dir] {
		return
	}
	w.fsw.Remove(dir)
	delete(w.watched, dir)
}

func (w *DirectoryWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *DirectoryWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}
	dir := filepath.Dir(event.Name)
	w.logger.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.cache.Invalidate(vfs.Local(dir))

	// A rewritten archive needs both its open handle and every cached
	// internal listing dropped, however deep.
	if vfs.IsArchiveFile(event.Name) {
		if w.archives != nil {
			w.archives.Invalidate(event.Name)
		}
		name := event.Name
		w.cache.InvalidateMatching(func(p vfs.Path) bool {
			return p.Scheme == vfs.SchemeArchive && p.LocalPath == name
		})
	}
}

// Close stops the event loop and releases the inotify handle.
func (w *DirectoryWatcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}
