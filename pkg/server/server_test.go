package server

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/bastiangx/texserve/pkg/prefix"
	"github.com/bastiangx/texserve/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type fakeEngine struct {
	mu       sync.Mutex
	requests []engine.Request
	closed   []string
	cleared  int
	reloads  int
	cfg      *engine.Config
}

func (f *fakeEngine) Complete(ctx context.Context, req engine.Request) engine.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return engine.Result{
		Kind:   prefix.KindCommand,
		Prefix: `\sec`,
		Suggestions: []suggest.Suggestion{
			{DisplayText: `\section`, ReplacementPrefix: `\sec`},
			{DisplayText: `\subsection`, ReplacementPrefix: `\sec`},
		},
	}
}

func (f *fakeEngine) Reload(ctx context.Context) error { f.reloads++; return nil }
func (f *fakeEngine) Reconfigure(cfg engine.Config)    { f.cfg = &cfg }
func (f *fakeEngine) ClearCache()                      { f.cleared++ }
func (f *fakeEngine) CloseSession(docID string)        { f.closed = append(f.closed, docID) }
func (f *fakeEngine) State() engine.State              { return engine.StateReady }
func (f *fakeEngine) Stats() map[string]int            { return map[string]int{"generation": 3} }

func (f *fakeEngine) SetGroupEnabled(id string, enabled bool) error {
	if id != "tikz" {
		return errors.WithHint(errors.Wrapf(errors.ErrNotFound, "completion group %q", id), `did you mean "tikz"?`)
	}
	return nil
}

func (f *fakeEngine) Groups() []engine.GroupInfo {
	return []engine.GroupInfo{{ID: "tikz", Enabled: true, Builtin: true}}
}

func encode(t *testing.T, reqs ...any) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	for _, r := range reqs {
		require.NoError(t, enc.Encode(r))
	}
	return &buf
}

func run(t *testing.T, eng Engine, input io.Reader, opts ...Option) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	srv := NewServer(eng, input, NewOutput(&out), opts...)
	require.NoError(t, srv.Start(context.Background()))

	var msgs []map[string]any
	dec := msgpack.NewDecoder(&out)
	for {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			require.ErrorIs(t, err, io.EOF)
			return msgs
		}
		msgs = append(msgs, m)
	}
}

func byID(msgs []map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(msgs))
	for _, m := range msgs {
		if id, ok := m["id"].(string); ok {
			out[id] = m
		}
	}
	return out
}

func TestComplete(t *testing.T) {
	eng := &fakeEngine{}
	msgs := run(t, eng, encode(t, Request{
		ID: "1", Action: ActionComplete, Doc: "main.tex", Line: `\sec`,
		Scopes: []string{"text.tex.latex"}, Path: "/tmp/main.tex", Limit: 1,
	}))

	require.Len(t, msgs, 1)
	resp := msgs[0]
	assert.Equal(t, "1", resp["id"])
	assert.Equal(t, "command", resp["k"])
	assert.Equal(t, `\sec`, resp["p"])
	assert.EqualValues(t, 1, resp["c"])
	require.Len(t, resp["s"], 1)
	first := resp["s"].([]any)[0].(map[string]any)
	assert.Equal(t, `\section`, first["dt"])
	assert.Equal(t, `\sec`, first["rp"])

	require.Len(t, eng.requests, 1)
	assert.Equal(t, engine.Request{DocID: "main.tex", Line: `\sec`, Scopes: []string{"text.tex.latex"}, DocPath: "/tmp/main.tex"}, eng.requests[0])
}

func TestCompleteMissingLine(t *testing.T) {
	msgs := run(t, &fakeEngine{}, encode(t, Request{ID: "1", Action: ActionComplete}))
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 400, msgs[0]["c"])
	assert.Contains(t, msgs[0]["e"], "line")
}

func TestControlActions(t *testing.T) {
	eng := &fakeEngine{}
	msgs := byID(run(t, eng, encode(t,
		Request{ID: "clear", Action: ActionClearCache},
		Request{ID: "close", Action: ActionClose, Doc: "main.tex"},
		Request{ID: "groups", Action: ActionGroups},
		Request{ID: "health", Action: ActionHealth},
		Request{ID: "enable", Action: ActionEnable, Group: "tikz"},
		Request{ID: "bad-group", Action: ActionDisable, Group: "tkz"},
		Request{ID: "no-group", Action: ActionDisable},
	)))

	assert.Equal(t, "ok", msgs["clear"]["status"])
	assert.Equal(t, 1, eng.cleared)
	assert.Equal(t, []string{"main.tex"}, eng.closed)

	groups := msgs["groups"]["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "tikz", groups[0].(map[string]any)["id"])

	assert.Equal(t, "ready", msgs["health"]["state"])
	assert.Equal(t, "ok", msgs["enable"]["status"])

	assert.Equal(t, "error", msgs["bad-group"]["status"])
	assert.Contains(t, msgs["bad-group"]["hint"], "tikz")
	assert.EqualValues(t, 400, msgs["no-group"]["c"])
}

func TestReloadWithConfig(t *testing.T) {
	eng := &fakeEngine{}
	cfg := engine.DefaultConfig()
	cfg.MinPrefixLength = 4

	msgs := run(t, eng, encode(t, Request{ID: "r", Action: ActionReload}),
		WithConfigReloader(func() (engine.Config, error) { return cfg, nil }))

	require.Len(t, msgs, 1)
	assert.Equal(t, "ok", msgs[0]["status"])
	assert.Equal(t, 1, eng.reloads)
	require.NotNil(t, eng.cfg)
	assert.Equal(t, 4, eng.cfg.MinPrefixLength)
}

func TestUnknownActionSuggestsCorrection(t *testing.T) {
	msgs := run(t, &fakeEngine{}, encode(t, Request{ID: "1", Action: "helth"}))
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0]["e"], `did you mean "health"?`)
}

func TestMalformedRequestContinues(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]any{"id": 7, "action": []int{1}}))
	require.NoError(t, enc.Encode(Request{ID: "ok", Action: ActionHealth}))

	msgs := run(t, &fakeEngine{}, &buf)
	require.Len(t, msgs, 2)
	assert.EqualValues(t, 400, msgs[0]["c"])
	assert.Equal(t, "ok", msgs[1]["id"])
}

func TestTruncatedStream(t *testing.T) {
	data, err := msgpack.Marshal(Request{ID: "1", Action: ActionHealth})
	require.NoError(t, err)

	srv := NewServer(&fakeEngine{}, bytes.NewReader(data[:len(data)-2]), NewOutput(io.Discard))
	assert.Error(t, srv.Start(context.Background()))
}

func TestOutputWarn(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf)
	out.Warn("Failed to find TeX packages. Consider disabling package completion.", errors.New("exec: tlmgr not found"))

	var w Warning
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &w))
	assert.Equal(t, ActionWarning, w.Action)
	assert.True(t, strings.HasPrefix(w.Message, "Failed to find TeX packages"))
	assert.Equal(t, "exec: tlmgr not found", w.Error)
}

func TestWithRealEngine(t *testing.T) {
	eng := engine.New(engine.DefaultConfig(), engine.WithPackageSource(nil))
	require.NoError(t, eng.Load(context.Background()))

	msgs := run(t, eng, encode(t,
		Request{ID: "c", Action: ActionComplete, Doc: "a", Line: `\subsec`, Scopes: []string{"text.tex.latex"}},
	), WithDefaultLimit(5))
	require.Len(t, msgs, 1)
	assert.Equal(t, "command", msgs[0]["k"])
	suggestions := msgs[0]["s"].([]any)
	require.NotEmpty(t, suggestions)
	assert.LessOrEqual(t, len(suggestions), 5)
	assert.Equal(t, `\subsection`, suggestions[0].(map[string]any)["dt"])
}
