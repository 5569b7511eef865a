package suggest

import (
	_ "embed"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/bastiangx/texserve/pkg/errors"
)

//go:embed resources/builtin.json
var builtinData []byte

// DefaultPriority is the merge priority of builtin groups. User groups are
// registered above it so they win conflicts.
const (
	DefaultPriority = 0
	UserPriority    = 100
)

// BuiltinGroups decodes the embedded feature groups. Every suggestion is
// marked IsDefault.
func BuiltinGroups() (map[string]GroupData, error) {
	groups, err := DecodeGroups(builtinData, FormatJSON)
	if err != nil {
		return nil, errors.Wrap(err, "decode builtin completions")
	}
	for _, group := range groups {
		for _, byCategory := range group {
			for category, list := range byCategory {
				for i := range list {
					list[i].IsDefault = true
				}
				byCategory[category] = list
			}
		}
	}
	return groups, nil
}

// BuiltinGroupIDs lists the embedded feature groups in sorted order.
func BuiltinGroupIDs() []string {
	groups, err := BuiltinGroups()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadBuiltins registers every builtin group into store. Groups named in
// enabled take that enablement; others default to enabled.
func LoadBuiltins(store *Store, enabled map[string]bool) error {
	groups, err := BuiltinGroups()
	if err != nil {
		return err
	}
	for _, id := range sortedKeys(groups) {
		on, set := enabled[id]
		if !set {
			on = true
		}
		store.AddGroup(id, groups[id], WithEnabled(on), WithPriority(DefaultPriority))
	}
	return nil
}

// BuiltinFingerprint identifies the embedded data, so cached results derived
// from it can be validated across restarts.
func BuiltinFingerprint() string {
	h := fnv.New64a()
	h.Write(builtinData)
	return strconv.FormatUint(h.Sum64(), 36)
}
