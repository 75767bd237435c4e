package formatter

import (
	"context"
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an optional live-reload goroutine: whenever a tracked
// file changes on disk, the manager re-runs Reload for it. Mirrors the
// teacher's FileWatcher lifecycle (context+cancel+WaitGroup), scaled
// down to the handful of files a visualiser set actually has instead of
// a whole source tree.
type Watch struct {
	watcher *fsnotify.Watcher
	mgr     *Manager
	logger  *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatch creates an fsnotify watcher over every file currently
// tracked by mgr. Call Start to begin watching and Close to stop.
func NewWatch(mgr *Manager, logger *log.Logger) (*Watch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, path := range mgr.ListAll() {
		if err := w.Add(path); err != nil {
			w.Close()
			return nil, err
		}
	}

	return &Watch{watcher: w, mgr: mgr, logger: logger}, nil
}

// Start begins watching in the background. Safe to call at most once.
func (w *Watch) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Watch) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.mgr.Reload(ev.Name); err != nil {
				w.logf("reload %s: %v", ev.Name, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logf("watch error: %v", err)
		}
	}
}

func (w *Watch) logf(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

// Close stops the watch goroutine and releases the fsnotify handle.
// Safe to call once Start has returned; blocks until the goroutine
// exits so tests can assert no goroutine leak (go.uber.org/goleak).
func (w *Watch) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
