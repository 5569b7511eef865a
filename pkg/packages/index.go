package packages

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bastiangx/texserve/internal/logger"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const gatherKey = "packages"

// Index owns the gathered registry and makes sure at most one gather runs
// at a time.
type Index struct {
	source Source
	log    *log.Logger

	group      singleflight.Group
	registry   atomic.Pointer[Registry]
	generation atomic.Uint64

	mu      sync.Mutex
	lastErr error
}

// NewIndex creates an index over source. Nothing is gathered until asked.
func NewIndex(source Source) *Index {
	return &Index{source: source, log: logger.Default("packages")}
}

// Registry returns the gathered registry, or false before the first gather
// has completed.
func (i *Index) Registry() (*Registry, bool) {
	r := i.registry.Load()
	return r, r != nil
}

// LastError returns the error of the most recent failed gather.
func (i *Index) LastError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Reset forgets the registry; the next request gathers again. A gather in
// flight when Reset is called does not publish its result.
func (i *Index) Reset() {
	i.generation.Add(1)
	i.registry.Store(nil)
}

// Gather builds the registry, sharing one run between concurrent callers.
// On failure the registry is set to the extras only so callers do not retry
// on every keystroke; the error is returned to the caller that observes it.
func (i *Index) Gather(ctx context.Context) (*Registry, error) {
	gen := i.generation.Load()
	v, err, shared := i.group.Do(gatherKey, func() (any, error) {
		return i.gather(ctx, gen)
	})
	if shared {
		i.log.Debugf("Joined in-flight package gather")
	}
	if v == nil {
		return nil, err
	}
	return v.(*Registry), err
}

// GatherAsync starts a gather in the background unless one is already
// running. done, if not nil, is called with the outcome.
func (i *Index) GatherAsync(done func(*Registry, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		r, err := i.Gather(ctx)
		if done != nil {
			done(r, err)
		}
	}()
}

func (i *Index) gather(ctx context.Context, gen uint64) (*Registry, error) {
	start := time.Now()
	registry := NewRegistry()

	var wg sync.WaitGroup
	var searchErr, metaErr error
	var found []searchResult
	var rows []Metadata

	wg.Add(2)
	go func() {
		defer wg.Done()
		searchErr = read(ctx, i.source.Search, func(r io.Reader) error {
			return ParseSearch(r, func(name string, files []string) {
				found = append(found, searchResult{name: name, files: files})
			})
		})
	}()
	go func() {
		defer wg.Done()
		metaErr = read(ctx, i.source.Metadata, func(r io.Reader) error {
			return ParseMetadata(r, func(m Metadata) { rows = append(rows, m) })
		})
	}()
	wg.Wait()

	for _, f := range found {
		registry.RegisterFiles(f.name, f.files)
	}
	for _, m := range rows {
		registry.RegisterMetadata(m)
	}
	registry.CleanUnusedMetadata()
	registry.AddExtras()

	err := errors.CombineErrors(searchErr, metaErr)

	i.mu.Lock()
	i.lastErr = err
	i.mu.Unlock()

	if i.generation.Load() == gen {
		i.registry.Store(registry)
	} else {
		i.log.Debugf("Discarding package gather started before a reset")
	}

	if err != nil {
		i.log.Warnf("Package gather finished with errors in %v: %v", time.Since(start), err)
	} else {
		i.log.Debugf("Gathered %d LaTeX names from %d packages in %v", registry.Len(), registry.Packages(), time.Since(start))
	}
	return registry, err
}

type searchResult struct {
	name  string
	files []string
}

func read(ctx context.Context, open func(context.Context) (io.ReadCloser, error), parse func(io.Reader) error) error {
	rc, err := open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return parse(rc)
}
