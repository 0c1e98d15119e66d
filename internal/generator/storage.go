package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goliatone/go-folio/internal/diagnostics"
)

type writeCategory string

const (
	categoryPage    writeCategory = "page"
	categoryAsset   writeCategory = "asset"
	categoryFeed    writeCategory = "feed"
	categorySitemap writeCategory = "sitemap"
	categoryRobots  writeCategory = "robots"
)

var (
	errOutputDirRequired = errors.New("generator: output directory is required")
	errOutputDirUnsafe   = errors.New("generator: refusing to use output directory")
	errWritePath         = errors.New("generator: write path must stay inside the output directory")
)

// writeFileRequest describes a file write routed through the artifact writer.
// Path is slash separated and relative to the output root.
type writeFileRequest struct {
	Path        string
	Content     io.Reader
	Category    writeCategory
	ContentType string
}

// artifactWriter abstracts where build outputs land.
type artifactWriter interface {
	WriteFile(ctx context.Context, req writeFileRequest) error
	// Reuse carries rel over from the committed output. It reports false when
	// the previous output does not have the file.
	Reuse(ctx context.Context, rel string) (bool, error)
	// CopyTree copies every regular file under dir into the output root.
	CopyTree(ctx context.Context, dir string) (int, error)
}

// stagedWriter writes into a sibling staging directory that replaces the
// output directory on Commit. Until then the previous output is untouched.
type stagedWriter struct {
	target string
	root   string

	mu      sync.Mutex
	written map[string]writeCategory
}

func newStagedWriter(outputDir string, protected ...string) (*stagedWriter, error) {
	target, err := resolveOutputDir(outputDir, protected...)
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, diagnostics.OutputFailed(parent, err)
	}
	root, err := os.MkdirTemp(parent, stagePattern(target))
	if err != nil {
		return nil, diagnostics.OutputFailed(parent, err)
	}
	return &stagedWriter{target: target, root: root, written: map[string]writeCategory{}}, nil
}

// resolveOutputDir returns the absolute output directory. It refuses the
// filesystem root and any directory that equals or contains one of the
// protected paths, since commit and clean remove the directory wholesale.
func resolveOutputDir(outputDir string, protected ...string) (string, error) {
	if strings.TrimSpace(outputDir) == "" {
		return "", errOutputDirRequired
	}
	target, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("generator: resolve output directory: %w", err)
	}
	if target == filepath.Dir(target) {
		return "", fmt.Errorf("%w %s", errOutputDirUnsafe, target)
	}
	for _, p := range protected {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("generator: resolve protected path: %w", err)
		}
		if containsPath(target, abs) {
			return "", fmt.Errorf("%w %s: it contains %s", errOutputDirUnsafe, target, abs)
		}
	}
	return target, nil
}

// containsPath reports whether child equals parent or lies below it.
func containsPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func stagePattern(target string) string {
	return "." + filepath.Base(target) + ".stage-*"
}

func (w *stagedWriter) local(rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: %q", errWritePath, rel)
	}
	return filepath.FromSlash(rel), nil
}

func (w *stagedWriter) WriteFile(ctx context.Context, req writeFileRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Content == nil {
		return errors.New("generator: write requires content reader")
	}
	rel, err := w.local(req.Path)
	if err != nil {
		return err
	}
	dest := filepath.Join(w.root, rel)
	if err := writeFileFrom(dest, req.Content); err != nil {
		return diagnostics.OutputFailed(req.Path, err)
	}
	w.record(rel, req.Category)
	return nil
}

func (w *stagedWriter) Reuse(ctx context.Context, rel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	local, err := w.local(rel)
	if err != nil {
		return false, err
	}
	src, err := os.Open(filepath.Join(w.target, local))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, diagnostics.OutputFailed(rel, err)
	}
	defer src.Close()
	if err := writeFileFrom(filepath.Join(w.root, local), src); err != nil {
		return false, diagnostics.OutputFailed(rel, err)
	}
	w.record(local, categoryPage)
	return true, nil
}

func (w *stagedWriter) CopyTree(ctx context.Context, dir string) (int, error) {
	copied := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		if err := writeFileFrom(filepath.Join(w.root, rel), src); err != nil {
			return err
		}
		w.record(rel, categoryAsset)
		copied++
		return nil
	})
	if err != nil {
		return copied, diagnostics.OutputFailed(dir, err)
	}
	return copied, nil
}

func (w *stagedWriter) record(rel string, category writeCategory) {
	w.mu.Lock()
	w.written[filepath.ToSlash(rel)] = category
	w.mu.Unlock()
}

// Files returns the number of files staged so far.
func (w *stagedWriter) Files() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

// Commit swaps the staging directory in for the output directory. The
// previous output is moved aside first and restored if the swap fails.
func (w *stagedWriter) Commit() error {
	backup := ""
	if _, err := os.Stat(w.target); err == nil {
		backup = w.root + ".previous"
		if err := os.Rename(w.target, backup); err != nil {
			return diagnostics.OutputFailed(w.target, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return diagnostics.OutputFailed(w.target, err)
	}

	if err := os.Rename(w.root, w.target); err != nil {
		if backup != "" {
			_ = os.Rename(backup, w.target)
		}
		return diagnostics.OutputFailed(w.target, err)
	}
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return diagnostics.OutputFailed(backup, err)
		}
	}
	return nil
}

// Discard removes the staging directory.
func (w *stagedWriter) Discard() error {
	return os.RemoveAll(w.root)
}

func writeFileFrom(dest string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// discardWriter backs dry runs: writes are drained and nothing is reused.
type discardWriter struct{}

func (discardWriter) WriteFile(ctx context.Context, req writeFileRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Content != nil {
		_, _ = io.Copy(io.Discard, req.Content)
	}
	return nil
}

func (discardWriter) Reuse(context.Context, string) (bool, error) { return false, nil }

func (discardWriter) CopyTree(context.Context, string) (int, error) { return 0, nil }
