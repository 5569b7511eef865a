package citation

import (
	"context"
	"os"

	"github.com/bastiangx/texserve/pkg/cache"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
)

// Loader reads bibliography files through a cache keyed by path and
// validated by the file's modification time and size.
type Loader struct {
	cache *cache.Manager[[]Record]
}

// NewLoader creates a loader backed by c. A nil cache gets a private one.
func NewLoader(c *cache.Manager[[]Record]) *Loader {
	if c == nil {
		c = cache.New[[]Record]()
	}
	return &Loader{cache: c}
}

// Cache exposes the backing cache for persistence and clearing.
func (l *Loader) Cache() *cache.Manager[[]Record] {
	return l.cache
}

// Records returns the parsed records of path, re-reading the file only when
// it changed since the cached parse.
func (l *Loader) Records(ctx context.Context, path string) ([]Record, error) {
	token, err := cache.StatToken(path)
	if err != nil {
		return nil, err
	}

	key := cache.StringKey(path)
	if records, ok := l.cache.Lookup(key, token); ok {
		return records, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSourceUnavailable, "open %s: %v", path, err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSourceUnavailable, "read %s: %v", path, err)
	}

	l.cache.Set(key, records, token)
	log.Debugf("Parsed %d citation records from %s", len(records), path)
	return records, nil
}
