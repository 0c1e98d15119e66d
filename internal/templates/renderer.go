// Package templates renders pages with pongo2. Built-in templates are
// embedded; a theme directory can override any of them by file name.
package templates

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-folio/pkg/interfaces"
)

//go:embed defaults/*.html
var defaultFS embed.FS

// ErrTemplateNotFound is returned for names neither the theme directory nor
// the built-in set provides.
var ErrTemplateNotFound = errors.New("templates: template not found")

// Config points the renderer at an optional theme directory.
type Config struct {
	Dir string
}

// Renderer implements interfaces.TemplateRenderer.
type Renderer struct {
	loader *overlayLoader
	set    *pongo2.TemplateSet

	mu       sync.RWMutex
	compiled map[string]*pongo2.Template
}

var _ interfaces.TemplateRenderer = (*Renderer)(nil)

// NewRenderer builds a renderer. A configured theme directory must exist.
func NewRenderer(cfg Config) (*Renderer, error) {
	builtin, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		return nil, err
	}
	loader := &overlayLoader{fallback: builtin}
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("templates: theme directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("templates: theme directory %s is not a directory", dir)
		}
		loader.dir = dir
	}

	return &Renderer{
		loader:   loader,
		set:      pongo2.NewSet("folio", loader),
		compiled: map[string]*pongo2.Template{},
	}, nil
}

// HasTemplate reports whether name resolves to a template.
func (r *Renderer) HasTemplate(name string) bool {
	_, err := r.loader.Get(r.loader.Abs("", name))
	return err == nil
}

// RenderTemplate executes name with data. Map data is exposed as top level
// variables, any other value under "data".
func (r *Renderer) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	tpl, err := r.template(name)
	if err != nil {
		return "", err
	}

	rendered, err := tpl.Execute(toContext(data))
	if err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	for _, w := range out {
		if w == nil {
			continue
		}
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", fmt.Errorf("templates: write %s: %w", name, err)
		}
	}
	return rendered, nil
}

// Fingerprint hashes the effective source of every template the renderer
// can see, so cached output is invalidated when a template changes.
func (r *Renderer) Fingerprint() string {
	h := sha256.New()
	for _, name := range r.loader.names() {
		h.Write([]byte(name))
		h.Write([]byte{0})
		if rc, err := r.loader.Get(name); err == nil {
			_, _ = io.Copy(h, rc)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.compiled[name]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	if !r.HasTemplate(name) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.compiled[name]; ok {
		return tpl, nil
	}
	tpl, err := r.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("templates: compile %s: %w", name, err)
	}
	r.compiled[name] = tpl
	return tpl, nil
}

func toContext(data any) pongo2.Context {
	switch typed := data.(type) {
	case nil:
		return pongo2.Context{}
	case pongo2.Context:
		return typed
	case map[string]any:
		return pongo2.Context(maps.Clone(typed))
	default:
		return pongo2.Context{"data": data}
	}
}

// overlayLoader resolves names against the theme directory first and the
// embedded defaults second.
type overlayLoader struct {
	dir      string
	fallback fs.FS
}

func (l *overlayLoader) Abs(_, name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}

func (l *overlayLoader) Get(name string) (io.Reader, error) {
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(name)))
		if err == nil {
			return bytes.NewReader(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	data, err := fs.ReadFile(l.fallback, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return bytes.NewReader(data), nil
}

func (l *overlayLoader) names() []string {
	seen := map[string]struct{}{}
	_ = fs.WalkDir(l.fallback, ".", func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			seen[p] = struct{}{}
		}
		return nil
	})
	if l.dir != "" {
		_ = filepath.WalkDir(l.dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if rel, relErr := filepath.Rel(l.dir, p); relErr == nil {
				seen[filepath.ToSlash(rel)] = struct{}{}
			}
			return nil
		})
	}
	return slices.Sorted(maps.Keys(seen))
}
