// Package scanner discovers markdown files under the configured content
// sources and turns each one into a content.ContentNode.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/identity"
	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

const stage = "scan"

var (
	// ErrNoSources is returned when Scan is called without sources.
	ErrNoSources = errors.New("scanner: at least one content source is required")
	// ErrSourceRoot is returned when a source root is missing or not a directory.
	ErrSourceRoot = errors.New("scanner: source root is not a readable directory")
)

// Source is a named directory tree of content files.
type Source struct {
	Name string
	Path string
}

// Config controls discovery.
type Config struct {
	Sources    []Source
	Extensions []string
	Workers    int
}

// DefaultExtensions lists the file extensions scanned when none are set.
var DefaultExtensions = []string{".md", ".mdx"}

// Scanner walks sources and parses frontmatter in parallel.
type Scanner struct {
	sources    []Source
	extensions []string
	workers    int
	logger     interfaces.Logger
}

// Result is the outcome of a scan: the populated arena plus the files that
// were skipped.
type Result struct {
	Arena  *content.Arena
	Issues []diagnostics.Issue
}

// New returns a Scanner for cfg.
func New(cfg Config, logger interfaces.Logger) *Scanner {
	exts := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = slices.Clone(DefaultExtensions)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.NoOp()
	}

	return &Scanner{
		sources:    slices.Clone(cfg.Sources),
		extensions: exts,
		workers:    workers,
		logger:     logger,
	}
}

// Roots returns the directory of every configured source.
func (s *Scanner) Roots() []string {
	roots := make([]string, 0, len(s.sources))
	for _, source := range s.sources {
		roots = append(roots, source.Path)
	}
	return roots
}

type candidate struct {
	source  Source
	absPath string
	relPath string
}

type parsed struct {
	node  *content.ContentNode
	issue *diagnostics.Issue
}

// Scan discovers every matching file and returns once all of them have been
// parsed. Unreadable frontmatter skips the file and is reported as a
// warning. A missing source root or an I/O failure aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if len(s.sources) == 0 {
		return nil, ErrNoSources
	}

	var candidates []candidate
	for _, source := range s.sources {
		found, err := s.discover(ctx, source)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}

	results := make([]parsed, len(candidates))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i := range candidates {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			res, err := s.load(candidates[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	arena := content.NewArena()
	var issues []diagnostics.Issue
	for _, res := range results {
		if res.issue != nil {
			issues = append(issues, *res.issue)
			continue
		}
		if !arena.Add(res.node) {
			return nil, fmt.Errorf("scanner: duplicate node id for %s", res.node.Path)
		}
	}

	s.logger.Info("scanner.scan.completed",
		"sources", len(s.sources),
		"files", len(candidates),
		"nodes", arena.Len(),
		"skipped", len(issues),
	)

	return &Result{Arena: arena, Issues: issues}, nil
}

func (s *Scanner) discover(ctx context.Context, source Source) ([]candidate, error) {
	root, err := filepath.Abs(source.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceRoot, source.Path, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceRoot, source.Path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceRoot, source.Path)
	}

	var found []candidate
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !s.matches(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		found = append(found, candidate{source: source, absPath: p, relPath: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walk %s: %w", source.Path, err)
	}

	s.logger.Debug("scanner.source.discovered", "source", source.Name, "root", root, "files", len(found))
	return found, nil
}

func (s *Scanner) matches(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return slices.Contains(s.extensions, strings.ToLower(filepath.Ext(name)))
}

func (s *Scanner) load(c candidate) (parsed, error) {
	data, err := os.ReadFile(c.absPath)
	if err != nil {
		return parsed{}, fmt.Errorf("scanner: read %s: %w", c.absPath, err)
	}
	info, err := os.Stat(c.absPath)
	if err != nil {
		return parsed{}, fmt.Errorf("scanner: stat %s: %w", c.absPath, err)
	}

	meta, body, err := markdown.ParseFrontMatter(data)
	if err != nil {
		logging.WithSourceContext(s.logger, c.relPath, c.source.Name, stage).
			Debug("scanner.frontmatter.unreadable", "error", err)
		return parsed{issue: &diagnostics.Issue{
			Severity: diagnostics.SeverityWarning,
			Stage:    stage,
			Path:     c.displayPath(),
			Code:     diagnostics.CodeFrontMatterUnreadable,
			Message:  "frontmatter could not be parsed, file skipped",
			Err:      err,
		}}, nil
	}

	sum := sha256.Sum256(data)
	relDir := path.Dir(c.relPath)
	if relDir == "." {
		relDir = ""
	}

	return parsed{node: &content.ContentNode{
		ID:                 identity.NodeUUID(c.source.Name, c.relPath),
		Path:               c.absPath,
		RelativePath:       c.relPath,
		RelativeDirectory:  relDir,
		SourceInstanceName: c.source.Name,
		FrontMatter:        meta,
		RawBody:            body,
		Checksum:           hex.EncodeToString(sum[:]),
		LastModified:       info.ModTime().UTC().Truncate(time.Second),
	}}, nil
}

func (c candidate) displayPath() string {
	return c.source.Name + "/" + c.relPath
}

// DisplayPath is the source-qualified path used in issues and errors.
func DisplayPath(node *content.ContentNode) string {
	if node == nil {
		return ""
	}
	return node.SourceInstanceName + "/" + node.RelativePath
}
