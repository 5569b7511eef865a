// Package packages indexes the LaTeX packages installed in the TeX
// distribution and turns them into \usepackage completions.
package packages

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/texserve/pkg/fuzzy"
	"github.com/bastiangx/texserve/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// FileCategory classifies a package file by its TDS directory.
type FileCategory int

const (
	Uncategorized FileCategory = iota
	Doc
	Tex
	Bibtex
)

// Package is one distribution package and the files it installs.
type Package struct {
	Name            string
	Description     string
	Size            int
	FilesByCategory map[FileCategory][]string
}

func newPackage(name string) *Package {
	return &Package{Name: name, FilesByCategory: make(map[FileCategory][]string)}
}

// AddFiles categorizes files by the top directory below their texmf root,
// e.g. texmf-dist/tex/latex/amsmath/amsmath.sty is a Tex file.
func (p *Package) AddFiles(files []string) {
	for _, file := range files {
		category := Uncategorized
		if strings.HasPrefix(file, "texmf") {
			parts := strings.Split(file, "/")
			if len(parts) > 1 {
				switch parts[1] {
				case "tex":
					category = Tex
				case "doc":
					category = Doc
				case "bibtex":
					category = Bibtex
				}
			}
		}
		p.FilesByCategory[category] = append(p.FilesByCategory[category], file)
	}
}

// LatexNames returns the names usable with \usepackage, sorted.
func (p *Package) LatexNames() []string {
	files := p.FilesByCategory[Tex]
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(path.Base(f), ".sty"))
	}
	sort.Strings(names)
	return names
}

// Metadata is one row of package information.
type Metadata struct {
	Name        string
	Category    string
	Description string
	Size        int
}

var platformSuffix = regexp.MustCompile(`\.(?:x86_64|i386|amd64|aarch64|arm64|armhf|universal|win32|win64|windows)(?:-|$)`)

// IsPlatformPackage reports whether name is a binary package for one platform.
func IsPlatformPackage(name string) bool {
	return platformSuffix.MatchString(name)
}

// extras are shipped by the distribution without a package of their own.
var extras = []Package{
	{Name: "fontenc", Description: "Change output font encoding"},
	{Name: "lmodern", Description: "Latin modern fonts in outline formats"},
	{Name: "graphicx", Description: "Improved version of the graphics package"},
	{Name: "lscape", Description: "Part of the graphics package"},
	{Name: "verbatim", Description: "Improved verbatim command and environments"},
	{Name: "inputenc", Description: "Accept different input encodings"},
}

// Registry maps LaTeX names to the packages that provide them. It is built
// once per gather and read-only afterwards.
type Registry struct {
	packages map[string]*Package
	latex    *patricia.Trie
	// folded maps lower-cased names to the names that fold to them
	folded *patricia.Trie
	count  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		packages: make(map[string]*Package),
		latex:    patricia.NewTrie(),
		folded:   patricia.NewTrie(),
	}
}

func (r *Registry) getOrCreate(name string) *Package {
	pkg, ok := r.packages[name]
	if !ok {
		pkg = newPackage(name)
		r.packages[name] = pkg
	}
	return pkg
}

// RegisterFiles records the files of a package. A "-dev" package only claims
// LaTeX names no regular package owns.
func (r *Registry) RegisterFiles(name string, files []string) {
	if IsPlatformPackage(name) {
		return
	}
	pkg := r.getOrCreate(name)
	pkg.AddFiles(files)

	dev := strings.HasSuffix(name, "-dev")
	for _, latexName := range pkg.LatexNames() {
		key := patricia.Prefix(latexName)
		if existing := r.latex.Get(key); existing != nil {
			if dev {
				continue
			}
			owner := existing.(*Package)
			if owner != pkg && !strings.HasSuffix(owner.Name, "-dev") {
				log.Debugf("LaTeX name %s moves from %s to %s", latexName, owner.Name, name)
			}
			r.latex.Set(key, pkg)
			continue
		}
		r.latex.Insert(key, pkg)
		r.addName(latexName)
	}
}

func (r *Registry) addName(name string) {
	r.count++
	key := patricia.Prefix(strings.ToLower(name))
	if item := r.folded.Get(key); item != nil {
		r.folded.Set(key, append(item.([]string), name))
		return
	}
	r.folded.Insert(key, []string{name})
}

// RegisterMetadata attaches a description and size to a package.
func (r *Registry) RegisterMetadata(m Metadata) {
	if IsPlatformPackage(m.Name) {
		return
	}
	pkg := r.getOrCreate(m.Name)
	pkg.Description = m.Description
	pkg.Size = m.Size
}

// CleanUnusedMetadata drops packages without LaTeX files; they can never be
// offered.
func (r *Registry) CleanUnusedMetadata() {
	for name, pkg := range r.packages {
		if len(pkg.FilesByCategory[Tex]) == 0 {
			delete(r.packages, name)
		}
	}
}

// AddExtras registers the packages the index never lists, unless an
// indexed package already provides the name.
func (r *Registry) AddExtras() {
	for _, extra := range extras {
		key := patricia.Prefix(extra.Name)
		if r.latex.Get(key) != nil {
			continue
		}
		pkg := newPackage(extra.Name)
		pkg.Description = extra.Description
		pkg.FilesByCategory[Tex] = []string{extra.Name + ".sty"}
		r.packages[extra.Name] = pkg
		r.latex.Insert(key, pkg)
		r.addName(extra.Name)
	}
}

// Len returns the number of LaTeX names.
func (r *Registry) Len() int {
	return r.count
}

// Packages returns the number of distribution packages kept.
func (r *Registry) Packages() int {
	return len(r.packages)
}

// Owner returns the package that provides latexName.
func (r *Registry) Owner(latexName string) (*Package, bool) {
	item := r.latex.Get(patricia.Prefix(latexName))
	if item == nil {
		return nil, false
	}
	return item.(*Package), true
}

// Names returns LaTeX names in lexical order. A non-empty prefix narrows the
// walk to names starting with it.
func (r *Registry) Names(prefix string) []string {
	names := make([]string, 0, r.count)
	visit := func(p patricia.Prefix, _ patricia.Item) error {
		names = append(names, string(p))
		return nil
	}
	var err error
	if prefix == "" {
		err = r.latex.Visit(visit)
	} else {
		err = r.latex.VisitSubtree(patricia.Prefix(prefix), visit)
	}
	if err != nil {
		log.Errorf("Error walking package names: %v", err)
	}
	// child order inside the trie is not guaranteed to be lexical
	sort.Strings(names)
	return names
}

// foldedNames returns the names starting with prefix ignoring ASCII case,
// in lexical order.
func (r *Registry) foldedNames(prefix string) []string {
	var names []string
	err := r.folded.VisitSubtree(patricia.Prefix(strings.ToLower(prefix)), func(_ patricia.Prefix, item patricia.Item) error {
		names = append(names, item.([]string)...)
		return nil
	})
	if err != nil {
		log.Errorf("Error walking package names: %v", err)
	}
	sort.Strings(names)
	return names
}

// candidates returns the names worth ranking for prefix. Prefix matches
// always outrank scattered ones, so when there are at least limit of them
// the scattered matches can never make the cut.
func (r *Registry) candidates(prefix string, limit int) []string {
	if limit > 0 && isASCIIWord(prefix) {
		if narrowed := r.foldedNames(prefix); len(narrowed) >= limit {
			return narrowed
		}
	}
	return r.Names("")
}

func isASCIIWord(prefix string) bool {
	if prefix == "" {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c >= utf8.RuneSelf {
			return false
		}
		if i == 0 && !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// Suggestions ranks LaTeX names against prefix and builds import suggestions.
func (r *Registry) Suggestions(prefix string, opts fuzzy.Options) []suggest.Suggestion {
	ranked := fuzzy.Rank(r.candidates(prefix, opts.MaxResults), func(s string) string { return s }, prefix, opts)

	out := make([]suggest.Suggestion, 0, len(ranked))
	for _, name := range ranked {
		pkg, ok := r.Owner(name)
		if !ok {
			continue
		}
		out = append(out, suggestionFor(name, pkg))
	}
	return out
}

func suggestionFor(name string, pkg *Package) suggest.Suggestion {
	description := pkg.Description
	var others []string
	for _, n := range pkg.LatexNames() {
		if n != name {
			others = append(others, n)
		}
	}
	if len(others) > 0 {
		description += "\nAlso in package:\n- " + strings.Join(others, "\n- ")
	}

	s := suggest.Suggestion{
		DisplayText:        name,
		Text:               name,
		Type:               suggest.KindImport,
		Category:           "package",
		Description:        description,
		DescriptionMoreURL: "texdoc://" + name,
	}
	if name != pkg.Name {
		s.RightLabel = pkg.Name
	}
	return s
}
