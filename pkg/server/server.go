package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/texserve/internal/logger"
	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/bastiangx/texserve/pkg/fuzzy"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Engine is what the server needs from the completion engine.
type Engine interface {
	Complete(ctx context.Context, req engine.Request) engine.Result
	Reload(ctx context.Context) error
	Reconfigure(cfg engine.Config)
	ClearCache()
	SetGroupEnabled(id string, enabled bool) error
	Groups() []engine.GroupInfo
	CloseSession(docID string)
	State() engine.State
	Stats() map[string]int
}

// Output serializes msgpack messages onto one writer. It is shared by the
// request loop and by warnings pushed from background work.
type Output struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *msgpack.Encoder
	log *log.Logger
}

// NewOutput wraps w.
func NewOutput(w io.Writer) *Output {
	bw := bufio.NewWriter(w)
	return &Output{w: bw, enc: msgpack.NewEncoder(bw), log: logger.Default("ipc")}
}

// Send encodes v and flushes it.
func (o *Output) Send(v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(v); err != nil {
		o.log.Errorf("Encoding response: %v", err)
		return err
	}
	return o.w.Flush()
}

// Warn pushes a warning message. It satisfies engine.Notifier.
func (o *Output) Warn(msg string, err error) {
	w := Warning{Action: ActionWarning, Message: msg}
	if err != nil {
		w.Error = err.Error()
	}
	o.log.Warnf("%s: %v", msg, err)
	o.Send(w)
}

// Option configures a Server.
type Option func(*Server)

// WithConfigReloader makes the reload action re-read the configuration.
func WithConfigReloader(load func() (engine.Config, error)) Option {
	return func(s *Server) { s.reloadConfig = load }
}

// WithDefaultLimit caps responses of requests that send no limit.
func WithDefaultLimit(limit int) Option {
	return func(s *Server) { s.defaultLimit = limit }
}

// Server handles the IPC for LaTeX completions
type Server struct {
	engine       Engine
	reader       io.Reader
	out          *Output
	reloadConfig func() (engine.Config, error)
	defaultLimit int
	corrector    *fuzzy.Corrector
	log          *log.Logger

	inflight sync.WaitGroup
	requests int
}

// NewServer creates a completion server reading requests from r and
// answering on out.
func NewServer(eng Engine, r io.Reader, out *Output, opts ...Option) *Server {
	s := &Server{
		engine:    eng,
		reader:    bufio.NewReader(r),
		out:       out,
		corrector: fuzzy.NewCorrector(knownActions),
		log:       logger.Default("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves requests until the input ends or ctx is done. Completion
// requests run concurrently; the rest are handled in order.
func (s *Server) Start(ctx context.Context) error {
	s.log.Debug("Starting Server.")
	defer s.inflight.Wait()

	dec := msgpack.NewDecoder(s.reader)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		raw, err := dec.DecodeRaw()
		if err != nil {
			if err == io.EOF {
				s.log.Debug("Input closed, stopping server")
				return nil
			}
			s.log.Errorf("Reading request stream: %v", err)
			return errors.Wrap(err, "read request")
		}

		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.log.Errorf("Unmarshaling request: %v", err)
			s.sendError("", "Invalid msgpack request", 400)
			continue
		}
		s.requests++
		s.handleRequest(ctx, req)
	}
}

// handleRequest dispatches one request by its action.
func (s *Server) handleRequest(ctx context.Context, req Request) {
	action := strings.TrimSpace(req.Action)
	if action == "" && req.Line != "" {
		action = ActionComplete
	}

	switch action {
	case ActionComplete:
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.handleComplete(ctx, req)
		}()
	case ActionReload:
		s.handleReload(ctx, req)
	case ActionClearCache:
		s.engine.ClearCache()
		s.sendStatus(req.ID, nil)
	case ActionEnable, ActionDisable:
		s.handleToggle(req, action == ActionEnable)
	case ActionGroups:
		s.out.Send(GroupsResponse{ID: req.ID, Status: "ok", Groups: s.engine.Groups()})
	case ActionClose:
		s.engine.CloseSession(req.Doc)
		s.sendStatus(req.ID, nil)
	case ActionHealth:
		s.out.Send(HealthResponse{
			ID:     req.ID,
			Status: "ok",
			State:  s.engine.State().String(),
			Stats:  s.engine.Stats(),
		})
	default:
		msg := fmt.Sprintf("Unknown action: %s", req.Action)
		if guess, ok := s.corrector.SuggestCorrection(action); ok {
			msg += fmt.Sprintf(" (did you mean %q?)", guess)
		}
		s.sendError(req.ID, msg, 400)
	}
}

// handleComplete runs one completion request and sends the response.
func (s *Server) handleComplete(ctx context.Context, req Request) {
	if req.Line == "" {
		s.sendError(req.ID, "Missing 'line' parameter", 400)
		s.log.Debug("Line is empty in request")
		return
	}

	start := time.Now()
	res := s.engine.Complete(ctx, engine.Request{
		DocID:   req.Doc,
		Line:    req.Line,
		Scopes:  req.Scopes,
		DocPath: req.Path,
		DocText: req.Text,
	})
	elapsed := time.Since(start)

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	suggestions := res.Suggestions
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	s.log.Debugf("Completed %q in %s: %s", req.Line, elapsed, res)
	s.out.Send(CompletionResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		Kind:        res.Kind.String(),
		Prefix:      res.Prefix,
		Superseded:  res.Superseded,
		TimeTaken:   elapsed.Microseconds(),
	})
}

func (s *Server) handleReload(ctx context.Context, req Request) {
	if s.reloadConfig != nil {
		cfg, err := s.reloadConfig()
		if err != nil {
			s.sendStatus(req.ID, err)
			return
		}
		s.engine.Reconfigure(cfg)
	}
	s.sendStatus(req.ID, s.engine.Reload(ctx))
}

func (s *Server) handleToggle(req Request, enabled bool) {
	if req.Group == "" {
		s.sendError(req.ID, "Missing 'group' parameter", 400)
		return
	}
	s.sendStatus(req.ID, s.engine.SetGroupEnabled(req.Group, enabled))
}

func (s *Server) sendStatus(id string, err error) {
	if err == nil {
		s.out.Send(StatusResponse{ID: id, Status: "ok"})
		return
	}
	s.out.Send(StatusResponse{
		ID:     id,
		Status: "error",
		Error:  err.Error(),
		Hint:   errors.FlattenHints(err),
	})
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.out.Send(CompletionError{ID: id, Error: message, Code: code})
}

// Requests returns how many requests have been read.
func (s *Server) Requests() int {
	return s.requests
}
