package suggest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// UserGroupID names the single group produced by a legacy flat completions file.
const UserGroupID = "user"

// Format of a completions document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks the decoder by file extension; anything that is not
// .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadGroupsFile reads and decodes a completions file. A missing file is
// reported with ErrSourceUnavailable so callers can tell it apart from a
// parse failure.
func LoadGroupsFile(path string) (map[string]GroupData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrSourceUnavailable, "read completions file %s: %v", path, err),
			"check the user_completions path in the config file",
		)
	}
	groups, err := DecodeGroups(data, FormatForPath(path))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	log.Debugf("Loaded %d completion groups from %s", len(groups), path)
	return groups, nil
}

// DecodeGroups decodes a completions document in either shape:
//
//	grouped: {"group": {"selector": {"category": [...]} | [...]}}
//	legacy:  {".selector": {"category": [...]} | [...]}
//
// A legacy document becomes the single group UserGroupID.
func DecodeGroups(data []byte, format Format) (map[string]GroupData, error) {
	var raw map[string]any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrParseFailure, "decode completions: %v", err)
	}
	if raw == nil {
		return map[string]GroupData{}, nil
	}

	if isLegacyShape(raw) {
		group, err := decodeGroup(raw)
		if err != nil {
			return nil, err
		}
		return map[string]GroupData{UserGroupID: group}, nil
	}

	groups := make(map[string]GroupData, len(raw))
	for _, id := range sortedKeys(raw) {
		bySelector, ok := raw[id].(map[string]any)
		if !ok {
			return nil, errors.Wrapf(errors.ErrParseFailure, "group %q: expected an object of selectors", id)
		}
		group, err := decodeGroup(bySelector)
		if err != nil {
			return nil, errors.Wrapf(err, "group %q", id)
		}
		groups[id] = group
	}
	return groups, nil
}

func isLegacyShape(raw map[string]any) bool {
	for key := range raw {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

func decodeGroup(bySelector map[string]any) (GroupData, error) {
	group := make(GroupData, len(bySelector))
	for _, selector := range sortedKeys(bySelector) {
		byCategory := make(map[string][]Suggestion)
		switch v := bySelector[selector].(type) {
		case []any:
			list, err := decodeList(v)
			if err != nil {
				return nil, errors.Wrapf(err, "selector %q", selector)
			}
			byCategory[KindSnippet] = list
		case map[string]any:
			for _, category := range sortedKeys(v) {
				items, ok := v[category].([]any)
				if !ok {
					return nil, errors.Wrapf(errors.ErrParseFailure, "selector %q category %q: expected a list", selector, category)
				}
				list, err := decodeList(items)
				if err != nil {
					return nil, errors.Wrapf(err, "selector %q category %q", selector, category)
				}
				byCategory[category] = list
			}
		default:
			return nil, errors.Wrapf(errors.ErrParseFailure, "selector %q: expected a list or an object of categories", selector)
		}
		group[selector] = byCategory
	}
	return group, nil
}

func decodeList(items []any) ([]Suggestion, error) {
	out := make([]Suggestion, 0, len(items))
	for i, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Wrapf(errors.ErrParseFailure, "entry %d: expected an object", i)
		}
		s := decodeSuggestion(record)
		if s.DisplayText == "" {
			log.Debugf("Skipping completion entry %d without displayText", i)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSuggestion(record map[string]any) Suggestion {
	str := func(key string) string {
		if v, ok := record[key].(string); ok {
			return v
		}
		return ""
	}

	s := Suggestion{
		DisplayText:        str("displayText"),
		Text:               str("text"),
		Snippet:            str("snippet"),
		Type:               str("type"),
		Description:        str("description"),
		DescriptionMoreURL: str("descriptionMoreURL"),
		LeftLabel:          str("leftLabel"),
		LeftLabelHTML:      str("leftLabelHTML"),
		RightLabel:         str("rightLabel"),
		RightLabelHTML:     str("rightLabelHTML"),
		ClassName:          str("className"),
		IconHTML:           str("iconHTML"),
	}
	if s.DisplayText == "" {
		s.DisplayText = str("prefix")
	}
	if v, ok := record["isDefault"].(bool); ok {
		s.IsDefault = v
	}
	return s
}
