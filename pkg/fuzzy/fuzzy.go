// Package fuzzy scores and ranks completion candidates against a typed prefix.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxResults bounds a ranked list unless Options says otherwise.
const DefaultMaxResults = 200

// Constants for scoring
const (
	firstCharMatchBonus            = 15
	adjacentMatchBonus             = 10
	maxAdjacentMatchBonus          = 150
	separatorMatchBonus            = 12
	camelCaseMatchBonus            = 12
	unmatchedLeadingCharPenalty    = -3
	maxUnmatchedLeadingCharPenalty = -9
	missedCharPenalty              = -20

	// tiers keep exact > prefix > scattered regardless of the base score
	tierStep         = 10000
	maxBaseScore     = tierStep/2 - 1
	prefixMatchBonus = tierStep
	exactMatchBonus  = 2 * tierStep
)

// Options controls ranking.
type Options struct {
	// AllowErrors lets prefix runes go unmatched (with a penalty) and drops
	// the first rune requirement. Used for citation keys and package names.
	AllowErrors bool
	// MaxResults truncates the ranked list; zero or less means no bound.
	MaxResults int
	// Dedup keeps only the first occurrence of each key after ranking.
	Dedup bool
}

// DefaultOptions returns strict matching with dedup and the default bound.
func DefaultOptions() Options {
	return Options{MaxResults: DefaultMaxResults, Dedup: true}
}

type scored[T any] struct {
	item  T
	key   string
	score int
}

// Rank filters items by prefix and orders them best first. Ties keep input
// order, so callers control precedence by how they order the input. The
// returned slice is freshly allocated.
func Rank[T any](items []T, key func(T) string, prefix string, opts Options) []T {
	return rank(items, key, prefix, opts, true)
}

func rank[T any](items []T, key func(T) string, prefix string, opts Options, prefilter bool) []T {
	pattern := []rune(prefix)

	var lead rune
	useLead := prefilter && !opts.AllowErrors && len(pattern) > 0
	if useLead {
		lead = pattern[0]
	}

	matches := make([]scored[T], 0, len(items))
	for _, item := range items {
		k := key(item)
		if useLead {
			first, _ := utf8.DecodeRuneInString(k)
			if !equalFold(first, lead) {
				continue
			}
		}
		score, ok := scoreRunes(pattern, k, opts.AllowErrors)
		if !ok {
			continue
		}
		matches = append(matches, scored[T]{item: item, key: k, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	limit := opts.MaxResults
	if limit <= 0 {
		limit = len(matches)
	}

	out := make([]T, 0, min(limit, len(matches)))
	var seen map[string]struct{}
	if opts.Dedup {
		seen = make(map[string]struct{}, len(matches))
	}
	for _, m := range matches {
		if len(out) >= limit {
			break
		}
		if seen != nil {
			if _, dup := seen[m.key]; dup {
				continue
			}
			seen[m.key] = struct{}{}
		}
		out = append(out, m.item)
	}
	return out
}

// Score reports whether pattern matches candidate and how well. An empty
// pattern matches everything with score zero.
func Score(pattern, candidate string, allowErrors bool) (int, bool) {
	return scoreRunes([]rune(pattern), candidate, allowErrors)
}

func scoreRunes(pattern []rune, candidate string, allowErrors bool) (int, bool) {
	if len(pattern) == 0 {
		return 0, true
	}
	candidateRunes := []rune(candidate)
	if len(candidateRunes) == 0 {
		return 0, false
	}

	var (
		base int
		ok   bool
	)
	if allowErrors {
		base, ok = runTolerantMatch(pattern, candidateRunes)
	} else {
		if !equalFold(pattern[0], candidateRunes[0]) {
			return 0, false
		}
		base, ok = runStrictMatch(pattern, candidateRunes)
	}
	if !ok {
		return 0, false
	}

	base = clamp(base, -maxBaseScore, maxBaseScore)
	bonus := tierBonus(pattern, candidateRunes)
	if bonus == 0 && allowErrors {
		// a leading marker such as "@" never appears in the key itself
		bonus = tierBonus(trimLeadingMarkers(pattern), candidateRunes)
	}
	return base + bonus, true
}

func tierBonus(pattern, candidate []rune) int {
	if len(pattern) == 0 || !hasPrefixFold(candidate, pattern) {
		return 0
	}
	if len(pattern) == len(candidate) {
		return exactMatchBonus
	}
	return prefixMatchBonus
}

func trimLeadingMarkers(pattern []rune) []rune {
	for i, r := range pattern {
		if isWordRune(r) {
			return pattern[i:]
		}
	}
	return nil
}

// matchState accumulates the bonuses of a left to right subsequence match.
type matchState struct {
	score        int
	matched      int
	lastMatch    int
	adjacentRun  int
	firstMatched int
}

func newMatchState() matchState {
	return matchState{lastMatch: -1, firstMatched: -1}
}

func (m *matchState) hit(candidate []rune, i int) {
	curr := candidate[i]
	score := 0

	if i == 0 {
		score += firstCharMatchBonus
	}
	if i > 0 {
		last := candidate[i-1]
		// Camel case bonus (lowercase to uppercase transition)
		if unicode.IsLower(last) && unicode.IsUpper(curr) {
			score += camelCaseMatchBonus
		}
		if isSeparator(last) {
			score += separatorMatchBonus
		}
	}

	if m.lastMatch >= 0 && m.lastMatch == i-1 {
		m.adjacentRun = min(m.adjacentRun*2+adjacentMatchBonus, maxAdjacentMatchBonus)
		score += m.adjacentRun
	} else {
		m.adjacentRun = 0
	}

	if m.firstMatched < 0 {
		m.firstMatched = i
		score += max(i*unmatchedLeadingCharPenalty, maxUnmatchedLeadingCharPenalty)
	}

	m.score += score
	m.matched++
	m.lastMatch = i
}

func (m *matchState) finish(candidateLen int) int {
	// Penalize unmatched candidate length
	return m.score + m.matched - candidateLen
}

// runStrictMatch requires every pattern rune in order.
func runStrictMatch(pattern, candidate []rune) (int, bool) {
	state := newMatchState()
	ci := 0
	for _, p := range pattern {
		found := false
		for ; ci < len(candidate); ci++ {
			if equalFold(candidate[ci], p) {
				state.hit(candidate, ci)
				ci++
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return state.finish(len(candidate)), true
}

// runTolerantMatch skips pattern runes that cannot be placed. Punctuation
// misses are free; letter and digit misses are bounded by 1 + n/4 where n is
// the number of letters and digits in the pattern.
func runTolerantMatch(pattern, candidate []rune) (int, bool) {
	significant := 0
	for _, p := range pattern {
		if isWordRune(p) {
			significant++
		}
	}
	if significant == 0 {
		return 0, true
	}
	allowed := 1 + significant/4

	state := newMatchState()
	misses := 0
	ci := 0
	for _, p := range pattern {
		found := -1
		for j := ci; j < len(candidate); j++ {
			if equalFold(candidate[j], p) {
				found = j
				break
			}
		}
		if found < 0 {
			if isWordRune(p) {
				misses++
				if misses > allowed {
					return 0, false
				}
				state.score += missedCharPenalty
			}
			continue
		}
		state.hit(candidate, found)
		ci = found + 1
	}
	if state.matched == 0 {
		return 0, false
	}
	return state.finish(len(candidate)), true
}

func hasPrefixFold(candidate, pattern []rune) bool {
	if len(pattern) > len(candidate) {
		return false
	}
	for i, p := range pattern {
		if !equalFold(candidate[i], p) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Helper function to check if a rune is a separator
func isSeparator(r rune) bool {
	return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/' || r == ':' || r == '\\' || r == '{'
}

// Helper function for case-insensitive rune equality
func equalFold(a, b rune) bool {
	if a == b {
		return true
	}

	// Try simple ASCII case folding first (faster)
	if a < utf8.RuneSelf && b < utf8.RuneSelf {
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		return a == b
	}

	return strings.EqualFold(string(a), string(b))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
