package scope

import (
	"testing"

	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		stack    []string
		want     bool
	}{
		{"and chain in order", "A B", []string{"A.x", "B.y"}, true},
		{"and chain reversed", "A B", []string{"B.y", "A.x"}, true},
		{"and chain missing token", "A B", []string{"A.x"}, false},
		{"alternation first", "A, B", []string{"A.x"}, true},
		{"alternation second", "A, B", []string{"B.y"}, true},
		{"alternation none", "A, B", []string{"C.z"}, false},
		{"leading dots", ".text.tex.latex .string.other.math", []string{"text.tex.latex", "string.other.math.block.latex"}, true},
		{"exact entry", ".text.tex.latex", []string{"text.tex.latex"}, true},
		{"dotted descendant only", "text.tex", []string{"text.texinfo"}, false},
		{"empty stack", "A", nil, false},
		{"stack with markers", "A B", []string{".A.x", ".B"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.selector, tt.stack)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name     string
		selector string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"empty alternative", ".a, , .b"},
		{"trailing comma", ".a,"},
		{"lone marker", "."},
		{"double dot", ".a..b"},
		{"exclusion", ".a - .b (x)"},
		{"wildcard", ".a.*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.selector)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidSelector(err))

			ok, err := Matches(tt.selector, []string{"a"})
			assert.False(t, ok)
			assert.Error(t, err)
		})
	}
}

func TestParseMemoized(t *testing.T) {
	a, err := Parse(".text.tex.latex .meta.math")
	require.NoError(t, err)
	b, err := Parse(".text.tex.latex .meta.math")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestString(t *testing.T) {
	sel := MustParse("text.tex.latex  .comment,.meta.math")
	assert.Equal(t, ".text.tex.latex .comment, .meta.math", sel.String())
	assert.Equal(t, [][]string{{"text.tex.latex", "comment"}, {"meta.math"}}, sel.Alternatives())
}

func TestNilSelector(t *testing.T) {
	var sel *Selector
	assert.False(t, sel.Matches([]string{"a"}))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "text.tex.latex meta.math", Key([]string{".text.tex.latex", " ", "meta.math"}))
}
