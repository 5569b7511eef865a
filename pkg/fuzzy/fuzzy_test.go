package fuzzy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	text  string
	group string
}

func entryKey(e entry) string { return e.text }

func identity(s string) string { return s }

func TestRankTiers(t *testing.T) {
	got := Rank([]string{"axxb", "abc", "ab"}, identity, "ab", DefaultOptions())
	assert.Equal(t, []string{"ab", "abc", "axxb"}, got)
}

func TestScore(t *testing.T) {
	testCases := []struct {
		pattern     string
		candidate   string
		allowErrors bool
		ok          bool
		description string
	}{
		{"ac", "abc", false, true, "Scattered subsequence"},
		{"bc", "abc", false, false, "Strict requires first rune"},
		{"bc", "abc", true, true, "Tolerant skips leading candidate runes"},
		{"\\FR", "\\frac", false, true, "Case insensitive"},
		{"abcd", "abc", false, false, "Pattern longer than candidate"},
		{"knut", "knuth1984", true, true, "Citation prefix"},
		{"knxth", "knuth1984", true, true, "One letter miss allowed"},
		{"zzzz", "abc", true, false, "Too many misses"},
		{"x", "abc", true, false, "Nothing matched"},
		{"-", "abc", true, true, "Punctuation only pattern matches everything"},
		{"ams-math", "amsmath", true, true, "Punctuation miss is free"},
		{"", "anything", false, true, "Empty pattern"},
		{"a", "", false, false, "Empty candidate"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, ok := Score(tc.pattern, tc.candidate, tc.allowErrors)
			assert.Equal(t, tc.ok, ok, "Score(%q, %q, %v)", tc.pattern, tc.candidate, tc.allowErrors)
		})
	}
}

func TestScoreOrdering(t *testing.T) {
	exact, ok := Score("\\frac", "\\frac", false)
	require.True(t, ok)
	prefix, ok := Score("\\frac", "\\fractional", false)
	require.True(t, ok)
	scattered, ok := Score("\\frac", "\\footnoteref-arc", false)
	require.True(t, ok)

	assert.Greater(t, exact, prefix)
	assert.Greater(t, prefix, scattered)
}

func TestRankTiersIgnoreCitationMarker(t *testing.T) {
	opts := Options{AllowErrors: true, Dedup: true}
	keys := []string{"k-n-u", "knuthandlamportcollected1999", "knu"}

	bare := Rank(keys, identity, "knu", opts)
	marked := Rank(keys, identity, "@knu", opts)
	assert.Equal(t, []string{"knu", "knuthandlamportcollected1999", "k-n-u"}, bare)
	assert.Equal(t, bare, marked)

	prefix, ok := Score("@knu", "knuth1984", true)
	require.True(t, ok)
	scattered, ok := Score("@knu", "k-n-u", true)
	require.True(t, ok)
	assert.Greater(t, prefix, scattered)
}

func TestRankDedupKeepsFirst(t *testing.T) {
	items := []entry{
		{"\\foo", "user"},
		{"\\foo", "builtin"},
		{"\\food", "builtin"},
	}
	got := Rank(items, entryKey, "\\fo", DefaultOptions())
	require.Len(t, got, 2)
	assert.Equal(t, entry{"\\foo", "user"}, got[0])
	assert.Equal(t, "\\food", got[1].text)

	opts := DefaultOptions()
	opts.Dedup = false
	assert.Len(t, Rank(items, entryKey, "\\fo", opts), 3)
}

func TestRankCap(t *testing.T) {
	items := make([]string, 300)
	for i := range items {
		items[i] = fmt.Sprintf("a%d", i)
	}
	assert.Len(t, Rank(items, identity, "a", DefaultOptions()), DefaultMaxResults)
	assert.Len(t, Rank(items, identity, "a", Options{}), 300)
	assert.Len(t, Rank(items, identity, "a", Options{MaxResults: 5}), 5)
}

func TestRankEmptyPrefixKeepsOrder(t *testing.T) {
	items := []string{"c", "a", "b", "a"}
	assert.Equal(t, []string{"c", "a", "b"}, Rank(items, identity, "", DefaultOptions()))
}

func TestPrefilterEquivalence(t *testing.T) {
	items := []string{
		"\\frac", "\\fbox", "\\footnote", "\\sqrt", "frac", "\\Frac", "\\f", "",
		"\\textbf", "\\begin{figure}", "\\fr", "xfrac", "\\ffrac", "\\section",
	}
	for _, prefix := range []string{"\\f", "\\fr", "f", "\\", "\\te", "x", "\\beg"} {
		t.Run(prefix, func(t *testing.T) {
			with := rank(items, identity, prefix, DefaultOptions(), true)
			without := rank(items, identity, prefix, DefaultOptions(), false)
			assert.Equal(t, without, with)
		})
	}
}

func TestRankDeterministic(t *testing.T) {
	items := []string{"knuth1984", "knuthTAOCP", "lamport94", "knu", "kn-uth"}
	opts := Options{AllowErrors: true, MaxResults: DefaultMaxResults, Dedup: true}
	first := Rank(items, identity, "knu", opts)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Rank(items, identity, "knu", opts))
	}
	assert.Equal(t, "knu", first[0])
}

func TestRankDoesNotAliasInput(t *testing.T) {
	items := []string{"ab", "ac"}
	got := Rank(items, identity, "a", DefaultOptions())
	got[0] = "zz"
	assert.Equal(t, "ab", items[0])
}

func TestSuggestCorrection(t *testing.T) {
	c := NewCorrector([]string{"generalMath", "sectioning", "tikz"})

	testCases := []struct {
		input          string
		expectedOutput string
		corrected      bool
		description    string
	}{
		{"sectionng", "sectioning", true, "Missing letter"},
		{"Tikz", "tikz", false, "Case insensitive exact"},
		{"t", "t", false, "Too short to correct"},
		{"qqqqqq", "qqqqqq", false, "Nothing close"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got, corrected := c.SuggestCorrection(tc.input)
			assert.Equal(t, tc.expectedOutput, got)
			assert.Equal(t, tc.corrected, corrected)
		})
	}
}
