package citation

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bastiangx/texserve/internal/utils"
	"github.com/charmbracelet/log"
)

var (
	magicBibRe  = regexp.MustCompile(`(?m)^\s*%+\s*!T[eE]X bib\s*=\s*(.*?)\s*$`)
	magicRootRe = regexp.MustCompile(`(?m)^\s*%+\s*!T[eE]X root\s*=\s*(.*?)\s*$`)
	resourceRe  = regexp.MustCompile(`\\addbibresource(?:\[.*?\])?\{(.*?)\}|\\bibliography\{(.*?)\}`)
)

// Locate finds the bibliography file for a document, in priority order:
//  1. a "% !TeX bib = path" directive
//  2. the first \addbibresource{path} or \bibliography{name}
//  3. a "% !TeX root = path" directive, applying 1 and 2 to the root file
//
// Paths resolve against the directory of the file that names them. The root
// file is followed one level only. It returns false when nothing resolves.
func Locate(ctx context.Context, docPath, docText string) (string, bool) {
	dir := ""
	if docPath != "" {
		dir = filepath.Dir(docPath)
	}

	if path, ok := locateIn(dir, docText); ok {
		return path, true
	}

	rootRef := magicRootRe.FindStringSubmatch(docText)
	if rootRef == nil {
		return "", false
	}
	rootPath, ok := utils.ResolveAgainst(dir, rootRef[1])
	if !ok || rootPath == docPath {
		return "", false
	}
	if ctx.Err() != nil {
		return "", false
	}

	rootText, err := os.ReadFile(rootPath)
	if err != nil {
		log.Debugf("Could not read root file %s: %v", rootPath, err)
		return "", false
	}
	return locateIn(filepath.Dir(rootPath), string(rootText))
}

func locateIn(dir, text string) (string, bool) {
	if m := magicBibRe.FindStringSubmatch(text); m != nil {
		if path, ok := utils.ResolveAgainst(dir, m[1]); ok {
			return path, true
		}
	}

	m := resourceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return utils.ResolveAgainst(dir, m[1])
	}

	// \bibliography takes a comma list of names without extension
	name, _, _ := strings.Cut(m[2], ",")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if filepath.Ext(name) == "" {
		name += ".bib"
	}
	return utils.ResolveAgainst(dir, name)
}
