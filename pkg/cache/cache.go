// Package cache memoizes derived results under a key and a freshness token.
// An entry is only valid while its token equals the source's current token;
// the manager never decides freshness itself.
package cache

import (
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
)

// Key identifies a cache entry. A key is either a plain string (ID) or a
// composite list of parts; the two never collide.
type Key struct {
	ID    string
	Parts []string
}

// StringKey returns a plain string key.
func StringKey(id string) Key {
	return Key{ID: id}
}

// CompositeKey returns a key made of several parts, compared element-wise.
func CompositeKey(parts ...string) Key {
	if parts == nil {
		parts = []string{}
	}
	return Key{Parts: append([]string(nil), parts...)}
}

// IsComposite reports whether k was built by CompositeKey.
func (k Key) IsComposite() bool {
	return k.Parts != nil
}

func (k Key) String() string {
	if k.IsComposite() {
		return "[" + strings.Join(k.Parts, ", ") + "]"
	}
	return k.ID
}

type entry[V any] struct {
	key        Key
	value      V
	token      string
	accessTime int64
}

// Option configures a Manager.
type Option func(*config)

type config struct {
	maxEntries int
}

// WithMaxEntries bounds the number of entries. When full, the least recently
// used entry is evicted. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// Manager is a concurrency-safe cache of V values.
type Manager[V any] struct {
	mu sync.RWMutex

	byID      map[string]*entry[V]
	composite []*entry[V]

	maxEntries  int
	accessCount int64

	hits      int
	misses    int
	evictions int
}

// New creates an empty cache.
func New[V any](opts ...Option) *Manager[V] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager[V]{
		byID:       make(map[string]*entry[V]),
		maxEntries: cfg.maxEntries,
	}
}

func (m *Manager[V]) find(key Key) (*entry[V], int) {
	if !key.IsComposite() {
		return m.byID[key.ID], -1
	}
	for i, e := range m.composite {
		if slices.Equal(e.key.Parts, key.Parts) {
			return e, i
		}
	}
	return nil, -1
}

// Has reports whether key is present, fresh or not.
func (m *Manager[V]) Has(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, _ := m.find(key)
	return e != nil
}

// Get returns the stored value regardless of freshness. Missing keys return
// an error wrapping errors.ErrNotFound.
func (m *Manager[V]) Get(key Key) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, _ := m.find(key)
	if e == nil {
		m.misses++
		var zero V
		return zero, errors.Wrapf(errors.ErrNotFound, "cache key %s", key)
	}
	m.hits++
	m.markAccessed(e)
	return e.value, nil
}

// Token returns the freshness token stored with key.
func (m *Manager[V]) Token(key Key) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, _ := m.find(key)
	if e == nil {
		return "", false
	}
	return e.token, true
}

// Lookup returns the value only when it is present and its token equals token.
// A stale entry is evicted.
func (m *Manager[V]) Lookup(key Key, token string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, idx := m.find(key)
	if e == nil {
		m.misses++
		return zero, false
	}
	if e.token != token {
		m.misses++
		m.remove(e, idx)
		return zero, false
	}
	m.hits++
	m.markAccessed(e)
	return e.value, true
}

// Set stores value under key with token, replacing any previous entry.
func (m *Manager[V]) Set(key Key, value V, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, token)
}

// SetIf stores value only if valid reports true. valid runs under the write
// lock, so a Clear that follows a failed or passed check is never lost.
func (m *Manager[V]) SetIf(key Key, value V, token string, valid func() bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !valid() {
		return false
	}
	m.setLocked(key, value, token)
	return true
}

func (m *Manager[V]) setLocked(key Key, value V, token string) {
	if e, _ := m.find(key); e != nil {
		e.value = value
		e.token = token
		m.markAccessed(e)
		return
	}

	if m.maxEntries > 0 && m.lenLocked() >= m.maxEntries {
		m.evictLRU()
	}

	stored := Key{ID: key.ID}
	if key.IsComposite() {
		stored.Parts = append([]string(nil), key.Parts...)
	}
	e := &entry[V]{key: stored, value: value, token: token}
	m.markAccessed(e)
	if key.IsComposite() {
		m.composite = append(m.composite, e)
	} else {
		m.byID[key.ID] = e
	}
}

// InvalidateIfStale returns true when key is absent or its token differs
// from token; a stale entry is evicted. It returns false for a fresh entry.
func (m *Manager[V]) InvalidateIfStale(key Key, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, idx := m.find(key)
	if e == nil {
		return true
	}
	if e.token != token {
		m.remove(e, idx)
		return true
	}
	return false
}

// Delete removes key if present.
func (m *Manager[V]) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, idx := m.find(key); e != nil {
		m.remove(e, idx)
	}
}

// Clear drops every entry.
func (m *Manager[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Manager[V]) clearLocked() {
	m.byID = make(map[string]*entry[V])
	m.composite = nil
}

// Len returns the number of entries.
func (m *Manager[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lenLocked()
}

func (m *Manager[V]) lenLocked() int {
	return len(m.byID) + len(m.composite)
}

// Stats returns counters for debugging.
func (m *Manager[V]) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int{
		"entries":    m.lenLocked(),
		"maxEntries": m.maxEntries,
		"hits":       m.hits,
		"misses":     m.misses,
		"evictions":  m.evictions,
	}
}

func (m *Manager[V]) remove(e *entry[V], idx int) {
	if !e.key.IsComposite() {
		delete(m.byID, e.key.ID)
		return
	}
	if idx < 0 {
		_, idx = m.find(e.key)
	}
	if idx >= 0 {
		m.composite = slices.Delete(m.composite, idx, idx+1)
	}
}

func (m *Manager[V]) markAccessed(e *entry[V]) {
	m.accessCount++
	e.accessTime = m.accessCount
}

func (m *Manager[V]) evictLRU() {
	var oldest *entry[V]
	var oldestTime int64 = math.MaxInt64

	for _, e := range m.byID {
		if e.accessTime < oldestTime {
			oldest, oldestTime = e, e.accessTime
		}
	}
	for _, e := range m.composite {
		if e.accessTime < oldestTime {
			oldest, oldestTime = e, e.accessTime
		}
	}

	if oldest != nil {
		m.remove(oldest, -1)
		m.evictions++
		log.Debugf("Evicted cache entry %s", oldest.key)
	}
}
