package engine

import (
	"context"

	"github.com/bastiangx/texserve/internal/watch"
	"github.com/charmbracelet/log"
)

// Watch reloads the user completions whenever the file changes, until ctx
// is done. It does nothing when no user file is configured or watching is off.
func (e *Engine) Watch(ctx context.Context) error {
	e.watchMu.Lock()
	e.watchCtx = ctx
	e.watchMu.Unlock()
	return e.startWatch()
}

// rewatch follows a changed user path after Reconfigure.
func (e *Engine) rewatch() {
	e.watchMu.Lock()
	active := e.watchCtx != nil
	e.watchMu.Unlock()
	if !active {
		return
	}
	if err := e.startWatch(); err != nil {
		e.warn("Failed to watch user completions", err)
	}
}

func (e *Engine) startWatch() error {
	e.mu.Lock()
	path := e.userPath()
	enabled := e.cfg.WatchUserCompletions
	debounce := e.cfg.WatchDebounce
	e.mu.Unlock()

	e.watchMu.Lock()
	defer e.watchMu.Unlock()

	if e.watcher != nil {
		e.watcher.Stop()
		e.watcher = nil
	}
	if path == "" || !enabled || e.watchCtx == nil {
		return nil
	}

	opts := []watch.Option{}
	if debounce > 0 {
		opts = append(opts, watch.WithDebounce(debounce))
	}
	ctx := e.watchCtx
	fw, err := watch.New(path, func() {
		if err := e.Reload(ctx); err != nil {
			log.Warnf("Reload after change failed: %v", err)
		}
	}, opts...)
	if err != nil {
		return err
	}
	fw.Start(ctx)
	e.watcher = fw
	log.Debugf("Watching %s for changes", fw.Path())
	return nil
}

// StopWatch stops the user file watcher, if any.
func (e *Engine) StopWatch() {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.watcher != nil {
		e.watcher.Stop()
		e.watcher = nil
	}
	e.watchCtx = nil
}
