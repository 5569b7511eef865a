package prefix

import (
	"strings"
	"testing"

	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	r := Default(2)

	tests := []struct {
		name       string
		line       string
		kind       Kind
		prefix     string
		suppressed bool
	}{
		{"package", `\usepackage{amsma`, KindPackage, "amsma", false},
		{"package empty argument suppressed", `\usepackage{`, KindPackage, "", true},
		{"package with options and list", `\usepackage[utf8]{inputenc, ams`, KindPackage, "ams", false},
		{"require package", `\RequirePackage{xco`, KindPackage, "xco", false},
		{"citation", `see @knu`, KindCitation, "@knu", false},
		{"bare citation marker suppressed", `see @`, KindCitation, "@", true},
		{"command", `\fr`, KindCommand, `\fr`, false},
		{"command after text", `some text \sec`, KindCommand, `\sec`, false},
		{"magic comment", `% !TeX`, KindCommand, `!TeX`, false},
		{"bare backslash suppressed", `text \`, KindSymbol, `\`, true},
		{"dollar exempt", `$`, KindSymbol, `$`, false},
		{"double dollar", `a $$`, KindSymbol, `$$`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := r.Classify(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.prefix, m.Prefix)
			assert.Equal(t, tt.suppressed, m.Suppressed)
		})
	}
}

func TestDirective(t *testing.T) {
	r := Default(2)

	m, ok := r.Classify(`% !TeX`)
	require.True(t, ok)
	assert.True(t, m.Directive())

	m, ok = r.Classify(`\sec`)
	require.True(t, ok)
	assert.False(t, m.Directive())

	m, ok = r.Classify(`text !`)
	require.True(t, ok)
	assert.False(t, m.Directive(), "a bare marker is a symbol")
}

func TestClassifyNoMatch(t *testing.T) {
	r := Default(2)
	for _, line := range []string{"", "plain text", `\frac{a}{b} `, "% !TeX root = main.tex"} {
		_, ok := r.Classify(line)
		assert.False(t, ok, line)
	}
}

func TestMinLengthSuppression(t *testing.T) {
	r := Default(4)

	m, ok := r.Classify(`\fr`)
	require.True(t, ok)
	assert.True(t, m.Suppressed)

	m, ok = r.Classify(`\usepackage{ams`)
	require.True(t, ok)
	assert.True(t, m.Suppressed, "short package prefixes are suppressed too")

	m, ok = r.Classify(`\usepackage{amsm`)
	require.True(t, ok)
	assert.False(t, m.Suppressed)

	m, ok = r.Classify(`$`)
	require.True(t, ok)
	assert.False(t, m.Suppressed, "exempt marker")

	m, ok = r.Classify(`$$`)
	require.True(t, ok)
	assert.True(t, m.Suppressed)
}

func TestInvalidPatternFallsBack(t *testing.T) {
	r, warnings := New(Patterns{Command: `[\\!]\w+(`, Citation: `cite:(\w*)$`}, 2)
	require.Len(t, warnings, 1)
	assert.True(t, errors.IsConfigInvalid(warnings[0]))

	m, ok := r.Classify(`\fr`)
	require.True(t, ok)
	assert.Equal(t, KindCommand, m.Kind)

	m, ok = r.Classify(`cite:knu`)
	require.True(t, ok)
	assert.Equal(t, KindCitation, m.Kind)
	assert.Equal(t, "knu", m.Prefix, "capture group is the prefix")
}

func TestDisabledKinds(t *testing.T) {
	r, warnings := New(DefaultPatterns(), 2, WithDisabled(KindCitation, KindPackage))
	require.Empty(t, warnings)

	_, ok := r.Classify(`see @knu`)
	assert.False(t, ok)

	_, ok = r.Classify(`\usepackage{ams`)
	assert.False(t, ok)

	m, ok := r.Classify(`\usepackage`)
	require.True(t, ok)
	assert.Equal(t, KindCommand, m.Kind)
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", 150) + `\fr`
	assert.Len(t, Tail(long, MaxLineLength), MaxLineLength)
	assert.Equal(t, "abc", Tail("abc", 5))
	assert.Equal(t, "βγ", Tail("αβγ", 2))

	m, ok := Default(2).Classify(long)
	require.True(t, ok)
	assert.Equal(t, `\fr`, m.Prefix)
}
