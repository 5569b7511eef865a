// Package prefix classifies the text before the cursor into a completion
// kind and extracts the prefix the suggestions will replace.
package prefix

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/texserve/pkg/errors"
)

// MaxLineLength is how many characters before the cursor are considered.
const MaxLineLength = 100

// Kind of completion a line asks for.
type Kind int

const (
	KindNone Kind = iota
	KindPackage
	KindCitation
	KindCommand
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindCitation:
		return "citation"
	case KindCommand:
		return "command"
	case KindSymbol:
		return "symbol"
	default:
		return "none"
	}
}

// Default patterns. Group 1, when present, is the prefix.
const (
	DefaultPackagePattern  = `\\(?:usepackage|RequirePackage)(?:\[[^\]]*\])?\{(?:[^{}]*,\s*)?([\w\-]*)$`
	DefaultCitationPattern = `@\S*$`
	DefaultCommandPattern  = `[\\!]\w+$`
	DefaultSymbolPattern   = `(?:[\\!]|\$+)$`
	DefaultExemptMarker    = "$"
)

// Patterns are the source regular expressions for each kind. Empty fields
// use the default.
type Patterns struct {
	Package  string
	Citation string
	Command  string
	Symbol   string
	// ExemptMarker is a bare marker that is never length-suppressed.
	ExemptMarker string
}

// DefaultPatterns returns the built-in patterns.
func DefaultPatterns() Patterns {
	return Patterns{
		Package:      DefaultPackagePattern,
		Citation:     DefaultCitationPattern,
		Command:      DefaultCommandPattern,
		Symbol:       DefaultSymbolPattern,
		ExemptMarker: DefaultExemptMarker,
	}
}

// Match is the classification of a line.
type Match struct {
	Kind   Kind
	Prefix string
	// Suppressed is set when the prefix is shorter than the minimum length.
	Suppressed bool
}

// DirectiveMarker starts a magic comment directive such as "!TeX root".
const DirectiveMarker = "!"

// Directive reports whether m is a magic comment directive. Directives only
// live in comments, so they are completed even where completion is disabled.
func (m Match) Directive() bool {
	return m.Kind == KindCommand && strings.HasPrefix(m.Prefix, DirectiveMarker)
}

type rule struct {
	kind Kind
	re   *regexp.Regexp
}

// Resolver holds compiled patterns. It is immutable and safe to share.
type Resolver struct {
	rules        []rule
	minLength    int
	exemptMarker string
	disabled     map[Kind]bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDisabled removes kinds from classification, e.g. citations when the
// feature is turned off.
func WithDisabled(kinds ...Kind) Option {
	return func(r *Resolver) {
		for _, k := range kinds {
			r.disabled[k] = true
		}
	}
}

// New compiles p. A pattern that fails to compile is replaced by its default
// and reported in the returned warnings, which wrap errors.ErrConfigInvalid.
func New(p Patterns, minLength int, opts ...Option) (*Resolver, []error) {
	defaults := DefaultPatterns()
	var warnings []error

	compile := func(kind Kind, source, fallback string) rule {
		if source == "" {
			source = fallback
		}
		re, err := regexp.Compile(source)
		if err != nil {
			warnings = append(warnings, errors.WithHint(
				errors.Wrapf(errors.ErrConfigInvalid, "%s pattern %q: %v", kind, source, err),
				"the built-in pattern is used instead",
			))
			re = regexp.MustCompile(fallback)
		}
		return rule{kind: kind, re: re}
	}

	r := &Resolver{
		rules: []rule{
			compile(KindPackage, p.Package, defaults.Package),
			compile(KindCitation, p.Citation, defaults.Citation),
			compile(KindCommand, p.Command, defaults.Command),
			compile(KindSymbol, p.Symbol, defaults.Symbol),
		},
		minLength:    minLength,
		exemptMarker: p.ExemptMarker,
		disabled:     make(map[Kind]bool),
	}
	if r.exemptMarker == "" {
		r.exemptMarker = defaults.ExemptMarker
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, warnings
}

// Default returns a resolver with the built-in patterns.
func Default(minLength int) *Resolver {
	r, _ := New(DefaultPatterns(), minLength)
	return r
}

// MinLength returns the configured minimum prefix length.
func (r *Resolver) MinLength() int {
	return r.minLength
}

// Classify tests the patterns in order (package, citation, command, symbol)
// against the tail of line and returns the first match.
func (r *Resolver) Classify(line string) (Match, bool) {
	line = Tail(line, MaxLineLength)

	for _, rl := range r.rules {
		if r.disabled[rl.kind] {
			continue
		}
		loc := rl.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		prefix := line[loc[0]:loc[1]]
		if len(loc) >= 4 && loc[2] >= 0 {
			prefix = line[loc[2]:loc[3]]
		}

		m := Match{Kind: rl.kind, Prefix: prefix}
		m.Suppressed = r.suppressed(m)
		return m, true
	}
	return Match{}, false
}

func (r *Resolver) suppressed(m Match) bool {
	if m.Kind == KindSymbol && m.Prefix == r.exemptMarker {
		return false
	}
	return utf8.RuneCountInString(m.Prefix) < r.minLength
}

// Tail returns at most the last n runes of s.
func Tail(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := len(s)
	for i := 0; i < n; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:cut])
		cut -= size
	}
	return s[cut:]
}
