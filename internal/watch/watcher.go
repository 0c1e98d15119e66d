// Package watch rebuilds the site when content, assets or templates change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

const defaultDebounce = 300 * time.Millisecond

var errRebuildRequired = errors.New("watch: rebuild function is required")

// Config selects what to watch.
type Config struct {
	// Roots are walked recursively; missing roots are skipped with a warning.
	Roots []string
	// Ignore lists paths whose events never trigger a rebuild, typically the
	// output directory and the digest cache.
	Ignore   []string
	Debounce time.Duration
}

// RebuildFunc runs one build. paths holds the changed files in sorted order.
type RebuildFunc func(ctx context.Context, paths []string) error

// Watcher debounces filesystem events into rebuilds. Rebuilds never overlap:
// events arriving during a rebuild are queued for the next one.
type Watcher struct {
	cfg     Config
	rebuild RebuildFunc
	logger  interfaces.Logger
	fsw     *fsnotify.Watcher
	ignore  []string
}

// New creates a watcher. Call Run to start it.
func New(cfg Config, rebuild RebuildFunc, logger interfaces.Logger) (*Watcher, error) {
	if rebuild == nil {
		return nil, errRebuildRequired
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if logger == nil {
		logger = logging.NoOp()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, rebuild: rebuild, logger: logger, fsw: fsw}
	for _, p := range cfg.Ignore {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	return w, nil
}

// Run registers the roots and processes events until ctx ends. The
// underlying fsnotify watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	watched := 0
	for _, root := range w.cfg.Roots {
		n, err := w.addTree(root)
		if err != nil {
			return err
		}
		watched += n
	}
	w.logger.Info("watch.start", "directories", watched, "debounce", w.cfg.Debounce.String())

	pending := map[string]struct{}{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch.stop")
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if _, err := w.addTree(event.Name); err != nil {
					w.logger.Warn("watch.add_failed", "path", event.Name, "error", err)
				}
			}
			w.logger.Debug("watch.event", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch.error", "error", err)
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)

			w.logger.Info("watch.rebuild", "changes", len(paths))
			if err := w.rebuild(ctx, paths); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("watch.rebuild_failed", "error", err)
			}
		}
	}
}

func (w *Watcher) addTree(root string) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("watch.root_missing", "path", root)
			return 0, nil
		}
		return 0, fmt.Errorf("watch: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if err := w.fsw.Add(root); err != nil {
			return 0, fmt.Errorf("watch: add %s: %w", root, err)
		}
		return 1, nil
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("watch.walk_failed", "path", path, "error", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) || w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if hidden(base) || strings.HasSuffix(base, "~") {
		return false
	}
	return !w.ignored(event.Name)
}

func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, prefix := range w.ignore {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
