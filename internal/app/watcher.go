package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

// isFreshDump reports whether path is a dump no upload was attempted for yet.
// IncrementAttempt renames a dump to a ".try" name; that rename is not a new arrival.
func isFreshDump(path string) bool {
	n, ok := crashfile.Parse(filepath.Base(path))
	return ok && n.Role == crashfile.RoleNotYetUploaded && !n.HasAttempts
}

// dirWatcher calls onDump once new dumps in the crash directory have been quiet
// for the debounce delay.
type dirWatcher struct {
	watcher *fsnotify.Watcher
	delay   time.Duration
	onDump  func()
	logger  ports.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

func newDirWatcher(dir string, delay time.Duration, onDump func(), logger ports.Logger) (*dirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &dirWatcher{
		watcher: w,
		delay:   delay,
		onDump:  onDump,
		logger:  logger,
	}, nil
}

func (w *dirWatcher) run(ctx context.Context) {
	defer w.watcher.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isFreshDump(event.Name) {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("directory watcher error", ports.Err(err))
		}
	}
}

func (w *dirWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.onDump)
}

func (w *dirWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
