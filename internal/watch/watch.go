// Package watch reports changes to a single file, debounced.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bastiangx/texserve/internal/logger"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of editor writes into one callback.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher watches one file through its parent directory, so the file
// may be deleted, renamed over, or created after the watch starts.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	log      *log.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
	stopped       bool
	done          chan struct{}
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithDebounce overrides the debounce period.
func WithDebounce(d time.Duration) Option {
	return func(fw *FileWatcher) { fw.debounce = d }
}

// New starts watching path's directory. onChange runs on its own goroutine
// after writes, creates, removes or renames of path settle.
func New(path string, onChange func(), opts ...Option) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(errors.ErrSourceUnavailable, "watch %s: %v", filepath.Dir(abs), err)
	}

	fw := &FileWatcher{
		path:     abs,
		watcher:  watcher,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      logger.Default("watch"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
	}
	return fw, nil
}

// Path returns the watched file.
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Run processes events until ctx is done or Stop is called.
func (fw *FileWatcher) Run(ctx context.Context) {
	defer close(fw.done)
	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fw.log.Debugf("Watcher detected %s on %s", event.Op, event.Name)
			fw.schedule()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warnf("File watcher error: %v", err)
		}
	}
}

// Start runs the watcher on a new goroutine.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.Run(ctx)
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return
	}
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounce, fw.onChange)
}

// Stop closes the watcher and cancels a pending callback. Safe to call twice.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return nil
	}
	fw.stopped = true
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	return fw.watcher.Close()
}

// Done is closed when Run returns.
func (fw *FileWatcher) Done() <-chan struct{} {
	return fw.done
}
