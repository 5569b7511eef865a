package engine

import (
	"context"
	"fmt"

	"github.com/bastiangx/texserve/pkg/cache"
	"github.com/bastiangx/texserve/pkg/citation"
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/bastiangx/texserve/pkg/fuzzy"
	"github.com/bastiangx/texserve/pkg/packages"
	"github.com/bastiangx/texserve/pkg/prefix"
	"github.com/bastiangx/texserve/pkg/scope"
	"github.com/bastiangx/texserve/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Request is one completion request.
type Request struct {
	// DocID identifies the document; requests of one document supersede each other.
	DocID string
	// Line is the text of the current line up to the cursor.
	Line string
	// Scopes is the scope stack at the cursor, root to leaf.
	Scopes []string
	// DocPath and DocText locate the bibliography for citation requests.
	DocPath string
	DocText string
}

// Result of a completion request. An empty result is never an error.
type Result struct {
	Suggestions []suggest.Suggestion
	Kind        prefix.Kind
	Prefix      string
	// Superseded is set when a newer request for the same document started
	// before this one finished; Suggestions is then empty.
	Superseded bool
}

// Complete answers req against the current snapshot. It never blocks on a
// reload, never returns an error and recovers from panics in the sources.
func (e *Engine) Complete(ctx context.Context, req Request) (res Result) {
	snap := e.snap.Load()
	if snap == nil {
		return Result{}
	}

	defer func() {
		if r := recover(); r != nil {
			e.warn("Completion source failed", errors.Newf("panic: %v", r))
			res = Result{Kind: res.Kind, Prefix: res.Prefix}
		}
	}()

	// every request supersedes the older ones of its document, even one
	// that ends up with nothing to complete
	session := e.Session(req.DocID)
	seq := session.begin()

	m, ok := snap.resolver.Classify(req.Line)
	if snap.disabled != nil && snap.disabled.Matches(req.Scopes) && !(ok && m.Directive()) {
		return Result{}
	}
	if !ok {
		return Result{}
	}
	res = Result{Kind: m.Kind, Prefix: m.Prefix}
	if m.Suppressed {
		return res
	}

	var ranked []suggest.Suggestion
	switch m.Kind {
	case prefix.KindPackage:
		ranked = e.completePackages(snap, m.Prefix)
	case prefix.KindCitation:
		ranked = e.completeCitations(ctx, snap, session, req, m.Prefix)
	default:
		ranked = e.completeGeneral(snap, req.Scopes, m.Prefix)
	}

	if !session.current(seq) {
		log.Debugf("Discarding superseded %s request for %q", m.Kind, req.DocID)
		res.Superseded = true
		return res
	}
	if len(ranked) > 0 {
		res.Suggestions = suggest.Stamp(ranked, m.Prefix)
	}
	return res
}

func (e *Engine) completePackages(snap *snapshot, pfx string) []suggest.Suggestion {
	index := e.index.Load()
	reg, ok := index.Registry()
	if !ok {
		index.GatherAsync(func(reg *packages.Registry, err error) {
			if err != nil {
				e.warn("Failed to find TeX packages. Consider disabling package completion.", err)
				return
			}
			log.Infof("Indexed %d LaTeX packages", reg.Len())
		})
		return nil
	}
	return reg.Suggestions(pfx, snap.cfg.rankOptions(true))
}

func (e *Engine) completeCitations(ctx context.Context, snap *snapshot, session *Session, req Request, pfx string) []suggest.Suggestion {
	path, ok := citation.Locate(ctx, req.DocPath, req.DocText)
	if !ok {
		return nil
	}
	records, err := session.loader.Records(ctx, path)
	if err != nil {
		if errors.IsSourceUnavailable(err) {
			log.Debugf("Bibliography unavailable: %v", err)
		} else {
			e.warn("Failed to read bibliography", err)
		}
		return nil
	}
	return fuzzy.Rank(citation.Suggestions(records, snap.format), suggest.DisplayKey, pfx, snap.cfg.rankOptions(true))
}

// completeGeneral filters the active set by scope through two caches: the
// scope stack maps to its matched selectors, and the selectors map to their
// merged candidates. Both are validated by the snapshot token.
func (e *Engine) completeGeneral(snap *snapshot, stack []string, pfx string) []suggest.Suggestion {
	epoch := e.epoch.Load()

	stackKey := cache.StringKey(scope.Key(stack))
	matched, ok := e.matches.Lookup(stackKey, snap.token)
	if !ok {
		matched = snap.active.Match(stack)
		e.matches.SetIf(stackKey, matched, snap.token, e.sameEpoch(epoch))
	}
	if len(matched) == 0 {
		return nil
	}

	setKey := cache.CompositeKey(matched...)
	candidates, ok := e.general.Lookup(setKey, snap.token)
	if !ok {
		candidates = snap.active.Collect(matched)
		e.general.SetIf(setKey, candidates, snap.token, e.sameEpoch(epoch))
	}
	return fuzzy.Rank(candidates, suggest.DisplayKey, pfx, snap.cfg.rankOptions(false))
}

// sameEpoch reports, when called, whether the caches are still those of
// epoch. ClearCache bumps the epoch before clearing, so a check made under
// the cache lock cannot write an entry back after the clear.
func (e *Engine) sameEpoch(epoch uint64) func() bool {
	return func() bool { return e.epoch.Load() == epoch }
}

// String describes the result for debug output.
func (r Result) String() string {
	if r.Superseded {
		return fmt.Sprintf("%s %q: superseded", r.Kind, r.Prefix)
	}
	return fmt.Sprintf("%s %q: %d suggestions", r.Kind, r.Prefix, len(r.Suggestions))
}
