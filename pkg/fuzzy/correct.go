package fuzzy

import (
	"sort"
	"strings"
)

// Corrector suggests the closest known name for a mistyped one, used to turn
// "unknown group" errors into "did you mean" hints.
type Corrector struct {
	words []string
}

// NewCorrector creates a corrector over a fixed set of names.
func NewCorrector(words []string) *Corrector {
	list := append([]string(nil), words...)
	sort.Strings(list)
	return &Corrector{words: list}
}

// SuggestCorrection returns the most likely intended word. The second return
// is false when input is already known or nothing is close enough.
func (c *Corrector) SuggestCorrection(input string) (string, bool) {
	// For very short inputs, don't attempt correction
	if len(input) < 2 {
		return input, false
	}

	for _, word := range c.words {
		if strings.EqualFold(word, input) {
			return word, false
		}
	}

	best, bestScore := "", 0
	found := false
	for _, word := range c.words {
		score, ok := Score(input, word, true)
		if !ok {
			continue
		}
		// Penalize length difference
		score -= abs(len(word)-len(input)) * 2
		if !found || score > bestScore {
			best, bestScore, found = word, score, true
		}
	}
	if !found {
		return input, false
	}
	return best, true
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
