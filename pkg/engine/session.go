package engine

import (
	"sync"

	"github.com/bastiangx/texserve/pkg/cache"
	"github.com/bastiangx/texserve/pkg/citation"
)

// sessionBibEntries bounds how many bibliography files one document keeps parsed.
const sessionBibEntries = 8

// Session is the per-document state: its bibliography cache and the request
// sequence used to detect superseded requests.
type Session struct {
	id     string
	loader *citation.Loader

	mu     sync.Mutex
	seq    uint64
	closed bool
}

func newSession(id string) *Session {
	return &Session{
		id:     id,
		loader: citation.NewLoader(cache.New[[]citation.Record](cache.WithMaxEntries(sessionBibEntries))),
	}
}

// ID returns the document id.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// current reports whether seq is still the latest request of an open session.
func (s *Session) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.seq == seq
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Session returns the session for docID, creating it on first use.
func (e *Engine) Session(docID string) *Session {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()

	s, ok := e.sessions[docID]
	if !ok {
		s = newSession(docID)
		e.sessions[docID] = s
	}
	return s
}

// CloseSession drops the session of docID and its caches. Requests still
// running against it come back superseded.
func (e *Engine) CloseSession(docID string) {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	if s, ok := e.sessions[docID]; ok {
		s.close()
		delete(e.sessions, docID)
	}
}

func (e *Engine) sessionCount() int {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	return len(e.sessions)
}
