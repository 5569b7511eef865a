package suggest

import (
	"sort"
	"sync"

	"github.com/bastiangx/texserve/pkg/scope"
	"github.com/charmbracelet/log"
)

// ActiveSet is the merged, read-only view of all enabled groups. It is
// rebuilt by Store.Build whenever membership changes and never mutated after.
type ActiveSet struct {
	generation uint64

	// selector -> concatenated suggestions of every category
	entries map[string][]Suggestion
	// selector -> category -> suggestions
	byCategory map[string]map[string][]Suggestion
	// insertion order of selectors
	order []string

	groupRank map[string]int

	invalid sync.Map
}

func newActiveSet(generation uint64) *ActiveSet {
	return &ActiveSet{
		generation: generation,
		entries:    make(map[string][]Suggestion),
		byCategory: make(map[string]map[string][]Suggestion),
		groupRank:  make(map[string]int),
	}
}

func (a *ActiveSet) add(selector, category string, s Suggestion) {
	selector = internString(selector)
	if _, seen := a.entries[selector]; !seen {
		a.order = append(a.order, selector)
		a.byCategory[selector] = make(map[string][]Suggestion)
	}
	a.entries[selector] = append(a.entries[selector], s)
	a.byCategory[selector][category] = append(a.byCategory[selector][category], s)
}

// Generation is the store generation this set was built from.
func (a *ActiveSet) Generation() uint64 {
	return a.generation
}

// Len returns the number of suggestions across all selectors.
func (a *ActiveSet) Len() int {
	n := 0
	for _, list := range a.entries {
		n += len(list)
	}
	return n
}

// Selectors returns the selector strings in insertion order.
func (a *ActiveSet) Selectors() []string {
	return append([]string(nil), a.order...)
}

// Get returns the suggestions stored under selector and category.
func (a *ActiveSet) Get(selector, category string) []Suggestion {
	return a.byCategory[selector][category]
}

// Match returns the sorted list of selectors that apply to stack. Invalid
// selectors are skipped and logged once per set.
func (a *ActiveSet) Match(stack []string) []string {
	var matched []string
	for _, selector := range a.order {
		sel, err := scope.Parse(selector)
		if err != nil {
			if _, logged := a.invalid.LoadOrStore(selector, struct{}{}); !logged {
				log.Warnf("Ignoring completions under invalid scope selector %q: %v", selector, err)
			}
			continue
		}
		if sel.Matches(stack) {
			matched = append(matched, selector)
		}
	}
	sort.Strings(matched)
	return matched
}

// Collect concatenates the suggestions of the given selectors. The result is
// stably ordered by the rank of the group each suggestion came from, so a
// higher priority group's entry precedes a lower one's with the same text.
func (a *ActiveSet) Collect(selectors []string) []Suggestion {
	n := 0
	for _, selector := range selectors {
		n += len(a.entries[selector])
	}
	out := make([]Suggestion, 0, n)
	for _, selector := range selectors {
		out = append(out, a.entries[selector]...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return a.groupRank[out[i].Group] < a.groupRank[out[j].Group]
	})
	return out
}

// Candidates matches stack and returns both the matched selectors and their
// suggestions.
func (a *ActiveSet) Candidates(stack []string) ([]string, []Suggestion) {
	matched := a.Match(stack)
	if len(matched) == 0 {
		return nil, nil
	}
	return matched, a.Collect(matched)
}
