package engine

import (
	"maps"
	"time"

	"github.com/bastiangx/texserve/pkg/citation"
	"github.com/bastiangx/texserve/pkg/fuzzy"
	"github.com/bastiangx/texserve/pkg/packages"
	"github.com/bastiangx/texserve/pkg/prefix"
)

// Config is the runtime configuration of an Engine. It is copied into each
// snapshot; callers change it only through Reconfigure.
type Config struct {
	MinPrefixLength int
	MaxResults      int

	Patterns prefix.Patterns

	// DisableForScope is a selector; requests whose scope stack matches it
	// get no suggestions.
	DisableForScope string

	EnableBuiltins bool
	// EnabledGroups overrides the enablement of named groups.
	EnabledGroups map[string]bool

	UserCompletionsPath  string
	WatchUserCompletions bool

	CitationsEnabled bool
	CitationFormat   string

	PackagesEnabled        bool
	PackageSearchCommand   string
	PackageMetadataCommand string

	// CacheSize bounds the general completion cache.
	CacheSize int
	// WatchDebounce is the settle time before a changed user file reloads.
	WatchDebounce time.Duration
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() Config {
	return Config{
		MinPrefixLength:        2,
		MaxResults:             fuzzy.DefaultMaxResults,
		Patterns:               prefix.DefaultPatterns(),
		DisableForScope:        ".text.tex.latex .comment",
		EnableBuiltins:         true,
		EnabledGroups:          map[string]bool{},
		WatchUserCompletions:   true,
		CitationsEnabled:       true,
		CitationFormat:         citation.DefaultFormat,
		PackagesEnabled:        true,
		PackageSearchCommand:   packages.DefaultSearchCommand,
		PackageMetadataCommand: packages.DefaultMetadataCommand,
		CacheSize:              512,
		WatchDebounce:          500 * time.Millisecond,
	}
}

func (c Config) clone() Config {
	c.EnabledGroups = maps.Clone(c.EnabledGroups)
	if c.EnabledGroups == nil {
		c.EnabledGroups = map[string]bool{}
	}
	return c
}

func (c Config) rankOptions(allowErrors bool) fuzzy.Options {
	max := c.MaxResults
	if max <= 0 {
		max = fuzzy.DefaultMaxResults
	}
	return fuzzy.Options{AllowErrors: allowErrors, MaxResults: max, Dedup: true}
}
