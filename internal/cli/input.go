// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/charmbracelet/log"
)

// Completer is the part of the engine the CLI drives.
type Completer interface {
	Complete(ctx context.Context, req engine.Request) engine.Result
}

// InputHandler processes user input from stdin, providing suggestions.
//
// Each line is "scopes | text": the scope stack, space separated and root
// first, then the line as typed. Without a "|" the default scopes are used.
// Lines starting with ":" are commands, see handleCommand.
type InputHandler struct {
	completer     Completer
	defaultScopes []string
	suggestLimit  int
	docPath       string
	docText       string
	requestCount  int
	out           io.Writer
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(completer Completer, scopes []string, limit int) *InputHandler {
	return &InputHandler{
		completer:     completer,
		defaultScopes: scopes,
		suggestLimit:  limit,
		out:           os.Stderr,
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from r,
// and passes the trimmed input to handleInput for processing.
// The loop ends at EOF or when ctx is done.
func (h *InputHandler) Start(ctx context.Context, r io.Reader) error {
	log.Print("texserve CLI [BETA]")
	reader := bufio.NewReader(r)
	log.Print("type 'scopes | line' and press Enter to see the suggestions (Ctrl+C to exit):")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		log.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		h.handleInput(ctx, line)
	}
}

// ParseLine splits "scopes | text" input. Without a separator the whole
// input is the text and defaults are returned as scopes.
func ParseLine(input string, defaults []string) ([]string, string) {
	head, text, found := strings.Cut(input, "|")
	if !found {
		return defaults, input
	}
	scopes := strings.Fields(head)
	if len(scopes) == 0 {
		scopes = defaults
	}
	return scopes, strings.TrimPrefix(text, " ")
}

// handleInput processes a single line to generate suggestions.
func (h *InputHandler) handleInput(ctx context.Context, input string) {
	if strings.HasPrefix(input, ":") {
		h.handleCommand(ctx, input[1:])
		return
	}

	h.requestCount++
	scopes, text := ParseLine(input, h.defaultScopes)

	start := time.Now()
	log.Debug("Processing request for", "line", text, "scopes", scopes)
	res := h.completer.Complete(ctx, engine.Request{
		DocID:   "cli",
		Line:    text,
		Scopes:  scopes,
		DocPath: h.docPath,
		DocText: h.docText,
	})
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for line '%s'", elapsed, text)

	if len(res.Suggestions) == 0 {
		log.Warnf("No suggestions found for line: '%s' (%s)", text, res.Kind)
		return
	}
	io.WriteString(h.out, Render(res, h.suggestLimit))
}

// handleCommand runs ":scopes a b", ":doc path", ":clear" and ":reload".
func (h *InputHandler) handleCommand(ctx context.Context, cmd string) {
	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "scopes":
		h.defaultScopes = strings.Fields(arg)
		log.Infof("Default scopes: %v", h.defaultScopes)
	case "doc":
		data, err := os.ReadFile(arg)
		if err != nil {
			log.Errorf("Cannot read document: %v", err)
			return
		}
		h.docPath, h.docText = arg, string(data)
		log.Infof("Using %s for citations", arg)
	case "clear":
		if c, ok := h.completer.(interface{ ClearCache() }); ok {
			c.ClearCache()
			log.Info("Caches cleared")
		}
	case "reload":
		if c, ok := h.completer.(interface{ Reload(context.Context) error }); ok {
			if err := c.Reload(ctx); err != nil {
				log.Errorf("Reload failed: %v", err)
				return
			}
			log.Info("Reloaded")
		}
	default:
		log.Errorf("Unknown command: %s", name)
	}
}
