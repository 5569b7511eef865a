/*
Package server implements msgpack IPC for LaTeX completion services.

The server reads a stream of msgpack maps from stdin and writes msgpack maps to stdout.
Logs go to stderr so they never corrupt the stream.

# IPC

Every request carries an ID and an action. Responses echo the ID, so completion requests may be answered out of order.

Completion requests send the line up to the cursor, the scope stack at the cursor, and the document for bibliography lookup:

	{"id": "req_001", "action": "complete", "doc": "file:///thesis/main.tex", "line": "see @knu", "scopes": ["text.tex.latex"], "path": "/thesis/main.tex", "text": "...", "l": 24}

The server responds with ranked suggestions, the detected kind and the replacement prefix:

	{"id": "req_001", "s": [{"dt": "knuth1984", "sn": "\\autocite$1{knuth1984}$2", "rp": "@knu"}], "c": 1, "k": "citation", "p": "@knu", "t": 145}

A request superseded by a newer one for the same document answers with no suggestions and "x": true.

Group management toggles completion groups at runtime:

	{"id": "g_001", "action": "disable", "group": "tikz"}
	{"id": "g_002", "action": "groups"}

Other actions: "reload" re-reads the config and user completions, "clear_cache" empties every cache,
"close" forgets a document's session, and "health" reports engine state and counters.

Warnings are pushed without a request, for instance when tlmgr cannot be found:

	{"action": "warning", "msg": "Failed to find TeX packages. Consider disabling package completion.", "e": "..."}

# Message Types

Request is the union of all request fields; unused fields are omitted by clients.
CompletionResponse carries suggestions with their short msgpack keys, see suggest.Suggestion.
StatusResponse answers control actions, GroupsResponse and HealthResponse answer queries,
and CompletionError reports malformed or failed requests.
*/
package server

import (
	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/bastiangx/texserve/pkg/suggest"
)

// Actions understood by the server.
const (
	ActionComplete   = "complete"
	ActionReload     = "reload"
	ActionClearCache = "clear_cache"
	ActionEnable     = "enable"
	ActionDisable    = "disable"
	ActionGroups     = "groups"
	ActionClose      = "close"
	ActionHealth     = "health"
	ActionWarning    = "warning"
)

var knownActions = []string{
	ActionComplete, ActionReload, ActionClearCache, ActionEnable,
	ActionDisable, ActionGroups, ActionClose, ActionHealth,
}

// Request - any client request
type Request struct {
	ID     string   `msgpack:"id"`
	Action string   `msgpack:"action"`
	Doc    string   `msgpack:"doc,omitempty"`
	Line   string   `msgpack:"line,omitempty"`
	Scopes []string `msgpack:"scopes,omitempty"`
	Path   string   `msgpack:"path,omitempty"`
	Text   string   `msgpack:"text,omitempty"`
	Limit  int      `msgpack:"l,omitempty"`
	Group  string   `msgpack:"group,omitempty"`
}

// CompletionResponse - completion response
type CompletionResponse struct {
	ID          string               `msgpack:"id"`
	Suggestions []suggest.Suggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
	Kind        string               `msgpack:"k"`
	Prefix      string               `msgpack:"p"`
	Superseded  bool                 `msgpack:"x,omitempty"`
	TimeTaken   int64                `msgpack:"t"`
}

// StatusResponse - control action response
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
	Error  string `msgpack:"error,omitempty"`
	Hint   string `msgpack:"hint,omitempty"`
}

// GroupsResponse lists the completion groups in merge order
type GroupsResponse struct {
	ID     string             `msgpack:"id"`
	Status string             `msgpack:"status"`
	Groups []engine.GroupInfo `msgpack:"groups"`
}

// HealthResponse reports engine state
type HealthResponse struct {
	ID     string         `msgpack:"id"`
	Status string         `msgpack:"status"`
	State  string         `msgpack:"state"`
	Stats  map[string]int `msgpack:"stats"`
}

// Warning is pushed to the client outside any request
type Warning struct {
	Action  string `msgpack:"action"`
	Message string `msgpack:"msg"`
	Error   string `msgpack:"e,omitempty"`
}

// CompletionError holds basic error information for failed requests
type CompletionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
