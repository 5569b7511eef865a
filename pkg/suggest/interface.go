// Package suggest holds the completion store: named groups of suggestions
// keyed by scope selector and category, merged into an active set according
// to which groups are enabled and their priority.
package suggest

// GroupData maps scope selector -> category -> ordered suggestions.
type GroupData map[string]map[string][]Suggestion

// IStore defines the interface for completion stores
type IStore interface {
	// AddGroup registers or overwrites a named group
	AddGroup(id string, data GroupData, opts ...GroupOption)

	// RemoveGroup drops a group entirely
	RemoveGroup(id string)

	// Enable and Disable toggle inclusion without touching stored data
	Enable(id string) bool
	Disable(id string) bool

	// Build returns the merged active set, cached until membership changes
	Build() (*ActiveSet, []Conflict)

	// Stats returns counters about the stored groups
	Stats() map[string]int
}

// Len returns the number of suggestions in the group.
func (g GroupData) Len() int {
	n := 0
	for _, byCategory := range g {
		for _, list := range byCategory {
			n += len(list)
		}
	}
	return n
}
