package cache

import (
	"bytes"
	"fmt"
	"os"

	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

type persistedEntry[V any] struct {
	ID        string   `msgpack:"k,omitempty"`
	Parts     []string `msgpack:"p,omitempty"`
	Composite bool     `msgpack:"c,omitempty"`
	Value     V        `msgpack:"v"`
	Token     string   `msgpack:"t"`
}

// Serialize encodes every entry as a flat msgpack list of (key, value, token).
func (m *Manager[V]) Serialize() ([]byte, error) {
	m.mu.RLock()
	entries := make([]persistedEntry[V], 0, m.lenLocked())
	for _, e := range m.byID {
		entries = append(entries, persistedEntry[V]{ID: e.key.ID, Value: e.value, Token: e.token})
	}
	for _, e := range m.composite {
		entries = append(entries, persistedEntry[V]{Parts: e.key.Parts, Composite: true, Value: e.value, Token: e.token})
	}
	m.mu.RUnlock()

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(entries); err != nil {
		return nil, errors.Wrap(err, "encode cache")
	}
	return buf.Bytes(), nil
}

// Restore replaces the contents with a previously serialized blob. Entries
// are taken verbatim; their tokens are checked on the next lookup. On decode
// failure the cache is left empty and an ErrParseFailure is returned.
func (m *Manager[V]) Restore(data []byte) error {
	var entries []persistedEntry[V]
	decodeErr := msgpack.Unmarshal(data, &entries)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()

	if decodeErr != nil {
		return errors.Wrapf(errors.ErrParseFailure, "decode cache: %v", decodeErr)
	}

	for i := range entries {
		pe := &entries[i]
		e := &entry[V]{value: pe.Value, token: pe.Token}
		m.markAccessed(e)
		if pe.Composite {
			parts := pe.Parts
			if parts == nil {
				parts = []string{}
			}
			e.key = Key{Parts: parts}
			m.composite = append(m.composite, e)
		} else {
			e.key = Key{ID: pe.ID}
			m.byID[pe.ID] = e
		}
	}
	if m.maxEntries > 0 {
		for m.lenLocked() > m.maxEntries {
			m.evictLRU()
		}
	}
	return nil
}

// FileToken derives a freshness token from a file's modification time and size.
func FileToken(info os.FileInfo) string {
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
}

// StatToken stats path and returns its FileToken. Failures wrap
// errors.ErrSourceUnavailable.
func StatToken(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(errors.ErrSourceUnavailable, "stat %s: %v", path, err)
	}
	return FileToken(info), nil
}
