package utils

// DedupFilter remembers the keys it has seen. Not safe for concurrent use.
type DedupFilter struct {
	seen map[string]struct{}
}

// NewDedupFilter creates an empty filter sized for n keys
func NewDedupFilter(n int) *DedupFilter {
	return &DedupFilter{seen: make(map[string]struct{}, n)}
}

// ShouldInclude reports whether key is new, and records it.
// Returns false for a key already seen.
func (f *DedupFilter) ShouldInclude(key string) bool {
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}
