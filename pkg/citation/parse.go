// Package citation parses bibliography files and locates the one a LaTeX
// document uses.
package citation

import (
	"io"
	"regexp"
	"strings"

	"github.com/bastiangx/texserve/internal/utils"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/bastiangx/texserve/pkg/suggest"
)

// Record is one citable bibliography entry.
type Record struct {
	Key  string `msgpack:"k"`
	Type string `msgpack:"t"`
}

var (
	entrySplit   = regexp.MustCompile(`\s*@\s*`)
	entryTypeRe  = regexp.MustCompile(`^\s*(.*?)\s*\{`)
	entryKeyRe   = regexp.MustCompile(`\{\s*(.*?)\s*,`)
	nonCiteTypes = map[string]bool{"comment": true, "string": true, "preamble": true}
)

// Parse reads a bibliography and returns its records in file order.
// Malformed entries are skipped; duplicate keys keep the first entry.
func Parse(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read bibliography")
	}
	return ParseString(string(data)), nil
}

// ParseString splits text on "@" and extracts the type (up to the first "{")
// and key (between "{" and the first ",") of each entry. Text before the
// first "@" is ignored.
func ParseString(text string) []Record {
	start := strings.IndexByte(text, '@')
	if start < 0 {
		return nil
	}

	chunks := entrySplit.Split(text[start+1:], -1)
	records := make([]Record, 0, len(chunks))
	seen := utils.NewDedupFilter(len(chunks))
	for _, chunk := range chunks {
		typ := entryTypeRe.FindStringSubmatch(chunk)
		if typ == nil || typ[1] == "" {
			continue
		}
		if nonCiteTypes[strings.ToLower(typ[1])] {
			continue
		}
		key := entryKeyRe.FindStringSubmatch(chunk)
		if key == nil || key[1] == "" {
			continue
		}
		if !seen.ShouldInclude(key[1]) {
			continue
		}
		records = append(records, Record{Key: key[1], Type: typ[1]})
	}
	return records
}

// Placeholder is replaced by the citation key in a citation format.
const Placeholder = "${cite}"

// DefaultFormat inserts a biblatex \autocite with optional pre and post notes.
const DefaultFormat = `\autocite$1{${cite}}$2`

// Format renders a citation key into snippet text.
type Format struct {
	before string
	after  string
}

// NewFormat splits format around the placeholder. A format without the
// placeholder gets the key appended.
func NewFormat(format string) Format {
	if format == "" {
		format = DefaultFormat
	}
	before, after, found := strings.Cut(format, Placeholder)
	if !found {
		return Format{before: format}
	}
	// only the first placeholder is substituted
	return Format{before: before, after: strings.ReplaceAll(after, Placeholder, "")}
}

// Apply renders key.
func (f Format) Apply(key string) string {
	return f.before + key + f.after
}

// Suggestions converts records into citation suggestions.
func Suggestions(records []Record, format Format) []suggest.Suggestion {
	out := make([]suggest.Suggestion, len(records))
	for i, r := range records {
		out[i] = suggest.Suggestion{
			DisplayText: r.Key,
			Snippet:     format.Apply(r.Key),
			Type:        r.Type,
			Category:    "citation",
		}
	}
	return out
}
