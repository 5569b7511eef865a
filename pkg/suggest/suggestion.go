package suggest

import (
	"sync"
)

var stringPool = sync.Map{}

// internString dedups the selector/category/group strings that every
// suggestion of a group carries.
func internString(s string) string {
	if cached, exists := stringPool.Load(s); exists {
		return cached.(string)
	}
	stringPool.Store(s, s)
	return s
}

// Kinds of suggestion. Any category name is accepted as a kind; these are
// the ones the engine produces itself.
const (
	KindSnippet  = "snippet"
	KindImport   = "import"
	KindKeyword  = "keyword"
	KindFunction = "function"
	KindValue    = "value"
)

// Suggestion is one insertable completion. Values are never mutated once
// stored; ReplacementPrefix is only set on the copies returned per request.
type Suggestion struct {
	DisplayText        string `json:"displayText" msgpack:"dt"`
	Text               string `json:"text,omitempty" msgpack:"tx,omitempty"`
	Snippet            string `json:"snippet,omitempty" msgpack:"sn,omitempty"`
	Type               string `json:"type,omitempty" msgpack:"ty,omitempty"`
	Description        string `json:"description,omitempty" msgpack:"ds,omitempty"`
	DescriptionMoreURL string `json:"descriptionMoreURL,omitempty" msgpack:"du,omitempty"`
	LeftLabel          string `json:"leftLabel,omitempty" msgpack:"ll,omitempty"`
	LeftLabelHTML      string `json:"leftLabelHTML,omitempty" msgpack:"lh,omitempty"`
	RightLabel         string `json:"rightLabel,omitempty" msgpack:"rl,omitempty"`
	RightLabelHTML     string `json:"rightLabelHTML,omitempty" msgpack:"rh,omitempty"`
	ClassName          string `json:"className,omitempty" msgpack:"cn,omitempty"`
	IconHTML           string `json:"iconHTML,omitempty" msgpack:"ih,omitempty"`
	IsDefault          bool   `json:"isDefault,omitempty" msgpack:"df,omitempty"`

	// Group and Category record where the suggestion came from.
	Group    string `json:"group,omitempty" msgpack:"g,omitempty"`
	Category string `json:"category,omitempty" msgpack:"c,omitempty"`

	ReplacementPrefix string `json:"replacementPrefix,omitempty" msgpack:"rp,omitempty"`
}

// WithReplacementPrefix returns a copy of s carrying prefix.
func (s Suggestion) WithReplacementPrefix(prefix string) Suggestion {
	s.ReplacementPrefix = prefix
	return s
}

// Stamp copies suggestions into a fresh slice, setting the replacement prefix
// on every copy. The input is left untouched.
func Stamp(suggestions []Suggestion, prefix string) []Suggestion {
	out := make([]Suggestion, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.WithReplacementPrefix(prefix)
	}
	return out
}

// DisplayKey is the ranking key of a suggestion.
func DisplayKey(s Suggestion) string {
	return s.DisplayText
}
