package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelWrapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"selector", Wrapf(ErrInvalidSelector, "selector %q", ".a,,"), IsInvalidSelector},
		{"source", Wrap(ErrSourceUnavailable, "bib missing"), IsSourceUnavailable},
		{"parse", Wrap(ErrParseFailure, "bad json"), IsParseFailure},
		{"config", Wrap(ErrConfigInvalid, "bad regex"), IsConfigInvalid},
		{"not found", Wrap(ErrNotFound, "cache key"), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestClassesDoNotOverlap(t *testing.T) {
	err := Wrap(ErrSourceUnavailable, "tlmgr failed")
	assert.False(t, IsParseFailure(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsSourceUnavailable(nil))
}

func TestHintSurvivesWrap(t *testing.T) {
	err := WithHint(Wrap(ErrSourceUnavailable, "spawn tlmgr"), "consider disabling package completions")
	wrapped := Wrap(err, "gather packages")

	assert.True(t, IsSourceUnavailable(wrapped))
	assert.Contains(t, FlattenHints(wrapped), "disabling package completions")
}
