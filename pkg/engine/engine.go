// Package engine ties the completion sources together. It owns the group
// store, the compiled prefix patterns, the caches and the package index, and
// answers completion requests against an immutable snapshot so that reloads
// never block requests.
package engine

import (
	"context"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bastiangx/texserve/internal/utils"
	"github.com/bastiangx/texserve/internal/watch"
	"github.com/bastiangx/texserve/pkg/cache"
	"github.com/bastiangx/texserve/pkg/citation"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/bastiangx/texserve/pkg/fuzzy"
	"github.com/bastiangx/texserve/pkg/packages"
	"github.com/bastiangx/texserve/pkg/prefix"
	"github.com/bastiangx/texserve/pkg/scope"
	"github.com/bastiangx/texserve/pkg/suggest"
	"github.com/charmbracelet/log"
)

// State of the engine lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "uninitialized"
	}
}

// Notifier receives user-visible warnings.
type Notifier interface {
	Warn(msg string, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string, err error)

func (f NotifierFunc) Warn(msg string, err error) { f(msg, err) }

// snapshot is everything a request needs, published atomically.
type snapshot struct {
	active   *suggest.ActiveSet
	resolver *prefix.Resolver
	disabled *scope.Selector
	format   citation.Format
	cfg      Config

	generation uint64
	// token validates cached general results. It is derived from the
	// content behind the active set, so it is stable across restarts.
	token string
}

// Engine answers completion requests.
type Engine struct {
	// mu serializes Load, Reload, Reconfigure and group toggles.
	mu  sync.Mutex
	cfg Config

	state      atomic.Int32
	snap       atomic.Pointer[snapshot]
	generation atomic.Uint64
	epoch      atomic.Uint64

	store      *suggest.Store
	builtinIDs map[string]struct{}
	userIDs    []string
	userToken  string

	matches *cache.Manager[[]string]
	general *cache.Manager[[]suggest.Suggestion]

	source       packages.Source
	customSource bool
	index        atomic.Pointer[packages.Index]

	sessionsMu sync.Mutex
	sessions   map[string]*Session

	notifier Notifier
	warned   sync.Map

	watchMu  sync.Mutex
	watcher  *watch.FileWatcher
	watchCtx context.Context
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier routes warnings to n. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithPackageSource replaces the tlmgr backed package source.
func WithPackageSource(src packages.Source) Option {
	return func(e *Engine) {
		e.source = src
		e.customSource = src != nil
	}
}

// WithStore uses store for completion groups instead of a fresh one.
func WithStore(store *suggest.Store) Option {
	return func(e *Engine) { e.store = store }
}

// New creates an engine in the Uninitialized state. Call Load before use.
func New(cfg Config, opts ...Option) *Engine {
	cfg = cfg.clone()
	e := &Engine{
		cfg:      cfg,
		store:    suggest.NewStore(),
		sessions: make(map[string]*Session),
		notifier: NotifierFunc(func(msg string, err error) {
			log.Warnf("%s: %v", msg, err)
		}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.builtinIDs = make(map[string]struct{})
	for _, id := range suggest.BuiltinGroupIDs() {
		e.builtinIDs[id] = struct{}{}
	}

	e.matches = cache.New[[]string](cache.WithMaxEntries(cfg.CacheSize))
	e.general = cache.New[[]suggest.Suggestion](cache.WithMaxEntries(cfg.CacheSize))

	if e.source == nil {
		e.source = packages.NewCommandSource(cfg.PackageSearchCommand, cfg.PackageMetadataCommand)
	}
	e.index.Store(packages.NewIndex(e.source))
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.clone()
}

// Generation increases every time a new snapshot is published.
func (e *Engine) Generation() uint64 {
	if snap := e.snap.Load(); snap != nil {
		return snap.generation
	}
	return 0
}

// Load registers the builtin and user groups, compiles the configuration
// and moves the engine to Ready.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StateUninitialized {
		return errors.New("engine already loaded")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.cfg.EnableBuiltins {
		if err := suggest.LoadBuiltins(e.store, e.cfg.EnabledGroups); err != nil {
			e.warn("Failed to load default completions", err)
		}
	}
	e.loadUser()
	e.store.SetEnabled(e.cfg.EnabledGroups)
	e.publish()

	e.state.Store(int32(StateReady))
	log.Infof("Engine ready: %d groups, %d suggestions", len(e.store.Groups()), e.snap.Load().active.Len())
	return nil
}

// Reload re-reads the user completions file and republishes. Requests keep
// being served from the previous snapshot meanwhile.
func (e *Engine) Reload(ctx context.Context) error {
	if e.State() == StateUninitialized {
		return e.Load(ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	e.state.Store(int32(StateRebuilding))
	defer e.state.Store(int32(StateReady))

	e.loadUser()
	e.publish()
	log.Debugf("Reloaded completions, generation %d", e.Generation())
	return nil
}

// Reconfigure swaps in cfg. Patterns and flags are recompiled; groups are
// rebuilt only when builtin enablement, group toggles or the user path changed.
func (e *Engine) Reconfigure(cfg Config) {
	cfg = cfg.clone()

	e.mu.Lock()
	old := e.cfg
	e.cfg = cfg

	if old.EnableBuiltins != cfg.EnableBuiltins {
		if cfg.EnableBuiltins {
			if err := suggest.LoadBuiltins(e.store, cfg.EnabledGroups); err != nil {
				e.warn("Failed to load default completions", err)
			}
		} else {
			for id := range e.builtinIDs {
				e.store.RemoveGroup(id)
			}
		}
	}
	if old.UserCompletionsPath != cfg.UserCompletionsPath {
		e.loadUser()
	}
	e.store.SetEnabled(cfg.EnabledGroups)

	if !e.customSource && (old.PackageSearchCommand != cfg.PackageSearchCommand ||
		old.PackageMetadataCommand != cfg.PackageMetadataCommand) {
		e.source = packages.NewCommandSource(cfg.PackageSearchCommand, cfg.PackageMetadataCommand)
		e.index.Store(packages.NewIndex(e.source))
	}

	if e.State() != StateUninitialized {
		e.publish()
	}
	e.mu.Unlock()

	if old.UserCompletionsPath != cfg.UserCompletionsPath || old.WatchUserCompletions != cfg.WatchUserCompletions {
		e.rewatch()
	}
}

// SetGroupEnabled toggles one group. Unknown ids return ErrNotFound with a
// hint naming the closest known group.
func (e *Engine) SetGroupEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ok bool
	if enabled {
		ok = e.store.Enable(id)
	} else {
		ok = e.store.Disable(id)
	}
	if !ok {
		err := errors.Wrapf(errors.ErrNotFound, "completion group %q", id)
		if guess, found := fuzzy.NewCorrector(e.store.Groups()).SuggestCorrection(id); found {
			err = errors.WithHintf(err, "did you mean %q?", guess)
		}
		return err
	}
	e.cfg.EnabledGroups[id] = enabled
	if e.State() != StateUninitialized {
		e.publish()
	}
	return nil
}

// GroupInfo describes one registered group.
type GroupInfo struct {
	ID      string `msgpack:"id"`
	Enabled bool   `msgpack:"enabled"`
	Builtin bool   `msgpack:"builtin"`
}

// Groups lists the registered groups in merge order.
func (e *Engine) Groups() []GroupInfo {
	ids := e.store.Groups()
	infos := make([]GroupInfo, 0, len(ids))
	for _, id := range ids {
		_, builtin := e.builtinIDs[id]
		infos = append(infos, GroupInfo{ID: id, Enabled: e.store.IsEnabled(id), Builtin: builtin})
	}
	return infos
}

// Stats returns counters for health reporting.
func (e *Engine) Stats() map[string]int {
	stats := map[string]int{
		"generation": int(e.Generation()),
		"sessions":   e.sessionCount(),
	}
	for k, v := range e.store.Stats() {
		stats["store_"+k] = v
	}
	for k, v := range e.general.Stats() {
		stats["cache_"+k] = v
	}
	if reg, ok := e.index.Load().Registry(); ok {
		stats["packages"] = reg.Len()
	}
	return stats
}

// ClearCache empties every cache and forgets the package index, so the next
// package request gathers again.
func (e *Engine) ClearCache() {
	e.epoch.Add(1)
	e.matches.Clear()
	e.general.Clear()

	e.sessionsMu.Lock()
	for _, s := range e.sessions {
		s.loader.Cache().Clear()
	}
	e.sessionsMu.Unlock()

	e.index.Load().Reset()
	e.warned.Range(func(key, _ any) bool {
		e.warned.Delete(key)
		return true
	})
	log.Debug("Cleared completion caches")
}

func (e *Engine) userPath() string {
	return utils.ExpandHome(strings.TrimSpace(e.cfg.UserCompletionsPath))
}

// loadUser replaces the user groups with the content of the user file. A
// missing file drops them; a malformed one keeps the previous groups.
func (e *Engine) loadUser() {
	path := e.userPath()
	if path == "" {
		e.replaceUserGroups(nil, "")
		return
	}

	token, _ := cache.StatToken(path)
	groups, err := suggest.LoadGroupsFile(path)
	switch {
	case err == nil:
		e.replaceUserGroups(groups, token)
		log.Debugf("Loaded %d user completion groups from %s", len(groups), path)
	case errors.IsSourceUnavailable(err):
		log.Debugf("No user completions: %v", err)
		e.replaceUserGroups(nil, "")
	default:
		e.warn("Failed to parse user completions; keeping the previous ones", err)
	}
}

func (e *Engine) replaceUserGroups(groups map[string]suggest.GroupData, token string) {
	for _, id := range e.userIDs {
		e.store.RemoveGroup(id)
	}
	e.userIDs = e.userIDs[:0]

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		storeID := id
		if _, clash := e.builtinIDs[id]; clash {
			storeID = suggest.UserGroupID + ":" + id
			log.Debugf("User group %q shares a builtin name, registering as %q", id, storeID)
		}
		enabled, set := e.cfg.EnabledGroups[storeID]
		if !set {
			enabled = true
		}
		e.store.AddGroup(storeID, groups[id],
			suggest.WithPriority(suggest.UserPriority), suggest.WithEnabled(enabled))
		e.userIDs = append(e.userIDs, storeID)
	}
	e.userToken = token
}

// publish compiles the current configuration and store into a new snapshot.
func (e *Engine) publish() {
	cfg := e.cfg.clone()
	active, _ := e.store.Build()

	var off []prefix.Kind
	if !cfg.CitationsEnabled {
		off = append(off, prefix.KindCitation)
	}
	if !cfg.PackagesEnabled {
		off = append(off, prefix.KindPackage)
	}
	resolver, errs := prefix.New(cfg.Patterns, cfg.MinPrefixLength, prefix.WithDisabled(off...))
	for _, err := range errs {
		e.warn("Invalid completion pattern; using the default", err)
	}

	var disabled *scope.Selector
	if strings.TrimSpace(cfg.DisableForScope) != "" {
		sel, err := scope.Parse(cfg.DisableForScope)
		if err != nil {
			e.warn("Invalid disable_for_scope selector; ignoring it", err)
		} else {
			disabled = sel
		}
	}

	e.snap.Store(&snapshot{
		active:     active,
		resolver:   resolver,
		disabled:   disabled,
		format:     citation.NewFormat(cfg.CitationFormat),
		cfg:        cfg,
		generation: e.generation.Add(1),
		token:      e.fingerprint(),
	})
}

// fingerprint hashes what the active set is built from: the embedded data,
// the loaded user file and the enabled groups.
func (e *Engine) fingerprint() string {
	enabled := e.store.Enabled()
	ids := make([]string, 0, len(enabled))
	for id, on := range enabled {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	h := fnv.New64a()
	h.Write([]byte(suggest.BuiltinFingerprint()))
	h.Write([]byte{0})
	h.Write([]byte(e.userToken))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	return strconv.FormatUint(h.Sum64(), 36)
}

// warn notifies once per distinct message until the caches are cleared.
func (e *Engine) warn(msg string, err error) {
	if _, seen := e.warned.LoadOrStore(msg, struct{}{}); seen {
		log.Debugf("%s: %v", msg, err)
		return
	}
	e.notifier.Warn(msg, err)
}
