package suggest

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// GroupOption configures a group at registration.
type GroupOption func(*groupEntry)

// WithEnabled sets whether the group starts enabled. Groups are enabled by default.
func WithEnabled(enabled bool) GroupOption {
	return func(g *groupEntry) { g.enabled = enabled }
}

// WithPriority sets the merge priority. Higher priority groups win conflicts;
// equal priorities fall back to registration order.
func WithPriority(priority int) GroupOption {
	return func(g *groupEntry) { g.priority = priority }
}

type groupEntry struct {
	id       string
	data     GroupData
	enabled  bool
	priority int
	seq      int
}

// Conflict records a (selector, category, displayText) slot defined by more
// than one enabled group. Winner is the group whose entry ranks first.
type Conflict struct {
	Selector    string
	Category    string
	DisplayText string
	Winner      string
	Loser       string
}

// Store is the completion registry. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	groups  map[string]*groupEntry
	nextSeq int

	// generation bumps on every membership or enablement change
	generation uint64
	built      *ActiveSet
	conflicts  []Conflict
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		groups: make(map[string]*groupEntry),
	}
}

// AddGroup registers data under id. An existing group with the same id is
// overwritten in place (keeping its registration position) and a warning is logged.
func (s *Store) AddGroup(id string, data GroupData, opts ...GroupOption) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &groupEntry{id: id, data: data, enabled: true}
	if old, exists := s.groups[id]; exists {
		log.Warnf("Completion group %q is already present; the old value has been overridden", id)
		entry.seq = old.seq
	} else {
		entry.seq = s.nextSeq
		s.nextSeq++
	}
	for _, opt := range opts {
		opt(entry)
	}
	s.groups[id] = entry
	s.invalidate()
}

// RemoveGroup drops the group. Unknown ids are ignored.
func (s *Store) RemoveGroup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; !exists {
		return
	}
	delete(s.groups, id)
	s.invalidate()
}

// Enable includes a group in the active set. Returns false for unknown ids.
func (s *Store) Enable(id string) bool {
	return s.setEnabled(id, true)
}

// Disable excludes a group from the active set without discarding its data.
func (s *Store) Disable(id string) bool {
	return s.setEnabled(id, false)
}

// SetEnabled applies a batch of toggles. Ids not present in the store are skipped.
func (s *Store) SetEnabled(toggles map[string]bool) {
	for id, enabled := range toggles {
		s.setEnabled(id, enabled)
	}
}

func (s *Store) setEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.groups[id]
	if !exists {
		return false
	}
	if entry.enabled != enabled {
		entry.enabled = enabled
		s.invalidate()
	}
	return true
}

// IsEnabled reports whether id is registered and enabled.
func (s *Store) IsEnabled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, exists := s.groups[id]
	return exists && entry.enabled
}

// Groups returns the registered ids in merge order.
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.ordered(false)
	ids := make([]string, len(ordered))
	for i, entry := range ordered {
		ids[i] = entry.id
	}
	return ids
}

// Enabled returns the enablement of every registered group.
func (s *Store) Enabled() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.groups))
	for id, entry := range s.groups {
		out[id] = entry.enabled
	}
	return out
}

// Generation returns a counter that changes whenever Build would produce a
// different result.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) invalidate() {
	s.generation++
	s.built = nil
	s.conflicts = nil
}

// ordered returns entries sorted by priority (descending) then registration order.
func (s *Store) ordered(enabledOnly bool) []*groupEntry {
	entries := make([]*groupEntry, 0, len(s.groups))
	for _, entry := range s.groups {
		if enabledOnly && !entry.enabled {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

type slotKey struct {
	selector    string
	category    string
	displayText string
}

// Build merges all enabled groups. Lists are concatenated in merge order so
// the first group defining a display text ranks first; collisions across
// groups are reported, not resolved. The result is cached until the next change.
func (s *Store) Build() (*ActiveSet, []Conflict) {
	s.mu.RLock()
	if s.built != nil {
		built, conflicts := s.built, s.conflicts
		s.mu.RUnlock()
		return built, conflicts
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built != nil {
		return s.built, s.conflicts
	}

	active := newActiveSet(s.generation)
	owners := make(map[slotKey]string)
	var conflicts []Conflict

	for rank, entry := range s.ordered(true) {
		active.groupRank[entry.id] = rank
		for _, selector := range sortedKeys(entry.data) {
			byCategory := entry.data[selector]
			for _, category := range sortedKeys(byCategory) {
				for _, suggestion := range byCategory[category] {
					if suggestion.DisplayText == "" {
						log.Debugf("Skipping suggestion without display text in group %q (%s/%s)", entry.id, selector, category)
						continue
					}
					key := slotKey{selector: selector, category: category, displayText: suggestion.DisplayText}
					if owner, taken := owners[key]; taken {
						if owner != entry.id {
							conflicts = append(conflicts, Conflict{
								Selector:    selector,
								Category:    category,
								DisplayText: suggestion.DisplayText,
								Winner:      owner,
								Loser:       entry.id,
							})
						}
					} else {
						owners[key] = entry.id
					}

					suggestion.Group = internString(entry.id)
					suggestion.Category = internString(category)
					if suggestion.Type == "" {
						suggestion.Type = suggestion.Category
					}
					active.add(selector, category, suggestion)
				}
			}
		}
	}

	for _, c := range conflicts {
		log.Warnf("Completion %q (%s/%s) defined by %q and %q; keeping %q first",
			c.DisplayText, c.Selector, c.Category, c.Winner, c.Loser, c.Winner)
	}

	s.built = active
	s.conflicts = conflicts
	log.Debugf("Built active completion set: %d selectors, %d suggestions, %d conflicts",
		len(active.order), active.Len(), len(conflicts))
	return active, conflicts
}

// Stats returns counters about the store.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enabled, suggestions := 0, 0
	for _, entry := range s.groups {
		if entry.enabled {
			enabled++
		}
		suggestions += entry.data.Len()
	}
	return map[string]int{
		"groups":        len(s.groups),
		"enabledGroups": enabled,
		"suggestions":   suggestions,
		"generation":    int(s.generation),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
