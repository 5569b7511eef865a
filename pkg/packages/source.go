package packages

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/kballard/go-shellquote"
)

// Source produces the raw package index. Search lists packages with their
// files; Metadata lists name,category,shortdesc,size rows as CSV.
type Source interface {
	Search(ctx context.Context) (io.ReadCloser, error)
	Metadata(ctx context.Context) (io.ReadCloser, error)
}

// Default commands for a TeX Live installation.
const (
	DefaultSearchCommand   = `tlmgr search --file ".*\.sty"`
	DefaultMetadataCommand = `tlmgr info --only-installed --data name,category,shortdesc,size`
)

// CommandSource runs shell-style command lines and returns their output.
type CommandSource struct {
	SearchCommand   string
	MetadataCommand string
}

// NewCommandSource returns a source running the given commands, falling back
// to the tlmgr defaults for empty ones.
func NewCommandSource(search, metadata string) *CommandSource {
	if search == "" {
		search = DefaultSearchCommand
	}
	if metadata == "" {
		metadata = DefaultMetadataCommand
	}
	return &CommandSource{SearchCommand: search, MetadataCommand: metadata}
}

// Search runs the search command.
func (s *CommandSource) Search(ctx context.Context) (io.ReadCloser, error) {
	return run(ctx, s.SearchCommand)
}

// Metadata runs the metadata command.
func (s *CommandSource) Metadata(ctx context.Context) (io.ReadCloser, error) {
	return run(ctx, s.MetadataCommand)
}

func run(ctx context.Context, line string) (io.ReadCloser, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "parse command %q: %v", line, err)
	}
	if len(args) == 0 {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "empty package command")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			log.Debugf("%s stderr: %s", args[0], msg)
		}
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrSourceUnavailable, "run %s: %v", args[0], err),
			"install tlmgr or disable package completions in the config file",
		)
	}
	return io.NopCloser(bytes.NewReader(out)), nil
}

var (
	pkgNameRe = regexp.MustCompile(`^([^:\s][^:]*):$`)
	pkgPathRe = regexp.MustCompile(`^\s*(.*)$`)
)

// ParseSearch reads search output: a "name:" line starts a package and the
// indented lines after it are its files. fn is called once per package.
func ParseSearch(r io.Reader, fn func(name string, files []string)) error {
	var current string
	var files []string
	emit := func() {
		if current != "" {
			fn(current, files)
		}
		current, files = "", nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := pkgNameRe.FindStringSubmatch(line); m != nil {
			emit()
			current = m[1]
			continue
		}
		if m := pkgPathRe.FindStringSubmatch(line); m != nil {
			if p := strings.TrimSpace(m[1]); p != "" && current != "" {
				files = append(files, p)
			}
		}
	}
	emit()
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(errors.ErrParseFailure, "read package search output: %v", err)
	}
	return nil
}

// ParseMetadata reads CSV rows of name,category,shortdesc,size and calls fn
// for the rows whose category is "Package".
func ParseMetadata(r io.Reader, fn func(Metadata)) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Debugf("Skipping malformed metadata row: %v", err)
				continue
			}
			return errors.Wrapf(errors.ErrParseFailure, "read package metadata: %v", err)
		}
		if len(row) < 2 || row[1] != "Package" {
			continue
		}
		m := Metadata{Name: row[0], Category: row[1]}
		if len(row) > 2 {
			m.Description = row[2]
		}
		if len(row) > 3 {
			m.Size, _ = strconv.Atoi(strings.TrimSpace(row[3]))
		}
		fn(m)
	}
}
