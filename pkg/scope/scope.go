// Package scope matches editor scope selectors against scope stacks.
//
// A selector is a comma separated list of alternatives. Each alternative is a
// space separated chain of scope tokens that must all be present in the stack:
//
//	".text.tex.latex .string.other.math, .text.tex.latex .meta.function.environment.math"
//
// A token is present when some stack entry equals it or is a dotted
// descendant of it (".string.other.math" is satisfied by
// "string.other.math.block.latex"). The leading "." of each token is optional.
package scope

import (
	"strings"
	"sync"

	"github.com/bastiangx/texserve/pkg/errors"
)

// unsupported grammar: exclusion, grouping and wildcards are not part of the
// selector language used by completion files.
const unsupportedChars = "()|&^!*"

// Selector is a parsed scope selector.
type Selector struct {
	source       string
	alternatives [][]string
}

type parsed struct {
	sel *Selector
	err error
}

var parseCache sync.Map

// Parse parses a selector string. Results (and failures) are memoized per
// selector string, so repeated calls for the same selector are map lookups.
func Parse(selector string) (*Selector, error) {
	if cached, ok := parseCache.Load(selector); ok {
		p := cached.(parsed)
		return p.sel, p.err
	}
	sel, err := parse(selector)
	parseCache.Store(selector, parsed{sel: sel, err: err})
	return sel, err
}

// MustParse is like Parse but panics on malformed input. Use only for
// selectors known at compile time.
func MustParse(selector string) *Selector {
	sel, err := Parse(selector)
	if err != nil {
		panic(err)
	}
	return sel
}

func parse(selector string) (*Selector, error) {
	trimmed := strings.TrimSpace(selector)
	if trimmed == "" {
		return nil, errors.Wrap(errors.ErrInvalidSelector, "empty selector")
	}
	if strings.ContainsAny(trimmed, unsupportedChars) {
		return nil, errors.Wrapf(errors.ErrInvalidSelector, "unsupported syntax in %q", selector)
	}

	branches := strings.Split(trimmed, ",")
	alternatives := make([][]string, 0, len(branches))
	for _, branch := range branches {
		fields := strings.Fields(branch)
		if len(fields) == 0 {
			return nil, errors.Wrapf(errors.ErrInvalidSelector, "empty alternative in %q", selector)
		}
		chain := make([]string, 0, len(fields))
		for _, field := range fields {
			token := strings.TrimPrefix(field, ".")
			if token == "" || strings.HasSuffix(token, ".") || strings.Contains(token, "..") {
				return nil, errors.Wrapf(errors.ErrInvalidSelector, "bad token %q in %q", field, selector)
			}
			chain = append(chain, token)
		}
		alternatives = append(alternatives, chain)
	}

	return &Selector{source: selector, alternatives: alternatives}, nil
}

// Matches parses selector and tests it against stack.
func Matches(selector string, stack []string) (bool, error) {
	sel, err := Parse(selector)
	if err != nil {
		return false, err
	}
	return sel.Matches(stack), nil
}

// Matches reports whether any alternative has every token present in stack.
func (s *Selector) Matches(stack []string) bool {
	if s == nil || len(stack) == 0 {
		return false
	}
	for _, chain := range s.alternatives {
		if chainMatches(chain, stack) {
			return true
		}
	}
	return false
}

func chainMatches(chain []string, stack []string) bool {
	for _, token := range chain {
		found := false
		for _, entry := range stack {
			if TokenMatches(token, entry) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TokenMatches reports whether entry equals token or descends from it.
// Both may carry a leading ".".
func TokenMatches(token, entry string) bool {
	token = strings.TrimPrefix(token, ".")
	entry = strings.TrimPrefix(entry, ".")
	if !strings.HasPrefix(entry, token) {
		return false
	}
	return len(entry) == len(token) || entry[len(token)] == '.'
}

// Alternatives returns a copy of the parsed AND-chains.
func (s *Selector) Alternatives() [][]string {
	out := make([][]string, len(s.alternatives))
	for i, chain := range s.alternatives {
		out[i] = append([]string(nil), chain...)
	}
	return out
}

// Source returns the selector string as it was given to Parse.
func (s *Selector) Source() string {
	return s.source
}

// String returns the canonical form, e.g. ".a .b, .c".
func (s *Selector) String() string {
	parts := make([]string, len(s.alternatives))
	for i, chain := range s.alternatives {
		dotted := make([]string, len(chain))
		for j, token := range chain {
			dotted[j] = "." + token
		}
		parts[i] = strings.Join(dotted, " ")
	}
	return strings.Join(parts, ", ")
}

// Normalize strips leading markers and blank entries from a scope stack,
// preserving root to leaf order.
func Normalize(stack []string) []string {
	out := make([]string, 0, len(stack))
	for _, entry := range stack {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), ".")
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// Key joins a scope stack into a stable string, used for logging and as a
// cache key ID. Order is kept since stacks are root to leaf.
func Key(stack []string) string {
	return strings.Join(Normalize(stack), " ")
}
