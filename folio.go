// Package folio builds a static blog from a directory of markdown posts.
//
// A build scans the configured content sources, derives one slug per file,
// projects the post source into posts and renders the post, index and about
// pages together with the RSS feed. Output is staged and committed
// atomically.
package folio

import (
	"context"
	"errors"
	"time"

	staticcmd "github.com/goliatone/go-folio/internal/commands/static"
	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/di"
	"github.com/goliatone/go-folio/internal/generator"
	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/internal/watch"
)

type (
	// Post is one projected blog post.
	Post = content.Post
	// Page is one routable page.
	Page = content.Page
	// Issue is a non-fatal problem found during a build.
	Issue = diagnostics.Issue
	// BuildResult reports what a build produced.
	BuildResult = generator.BuildResult
	// GeneratorService is the static site generator contract.
	GeneratorService = generator.Service
	// Option customises the module wiring.
	Option = di.Option
)

var (
	WithLoggerProvider  = di.WithLoggerProvider
	WithTemplate        = di.WithTemplate
	WithMarkdownParser  = di.WithMarkdownParser
	WithDigestStore     = di.WithDigestStore
	WithMetricsRecorder = di.WithMetricsRecorder
)

// Fatal build errors, matchable with errors.Is.
var (
	ErrSlugCollision = diagnostics.ErrSlugCollision
	ErrRenderFailed  = diagnostics.ErrRenderFailed
	ErrOutputWrite   = diagnostics.ErrOutputWrite
)

// BuildOptions narrows a single build.
type BuildOptions struct {
	Force  bool
	DryRun bool
}

// Module is the top level runtime facade.
type Module struct {
	container *di.Container
}

// New validates cfg and wires a module. Close releases the digest store.
func New(ctx context.Context, cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying wiring for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Generator returns the configured generator service.
func (m *Module) Generator() GeneratorService {
	return m.container.Generator()
}

// Build runs the pipeline and commits the site. The result is returned
// alongside a fatal error when the build got far enough to produce one.
func (m *Module) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	return m.build(ctx, staticcmd.BuildSiteCommand{
		Force:   opts.Force,
		DryRun:  opts.DryRun,
		Trigger: staticcmd.TriggerCLI,
	})
}

// Diff renders the site without writing it and classifies posts against the
// last committed build.
func (m *Module) Diff(ctx context.Context) (*BuildResult, error) {
	var result *BuildResult
	err := m.container.DiffHandler().Execute(ctx, staticcmd.DiffSiteCommand{
		ResultCallback: func(env staticcmd.ResultEnvelope) { result = env.Result },
	})
	return result, err
}

// Clean removes the output directory and the digest snapshot.
func (m *Module) Clean(ctx context.Context) error {
	return m.container.CleanHandler().Execute(ctx, staticcmd.CleanSiteCommand{})
}

// Watch builds once, then rebuilds whenever an input changes until ctx
// ends. A failed initial build is returned; later failures are logged and
// the previous output stays in place. A positive debounce overrides the
// configured one.
func (m *Module) Watch(ctx context.Context, debounce time.Duration) error {
	if _, err := m.build(ctx, staticcmd.BuildSiteCommand{Trigger: staticcmd.TriggerWatch}); err != nil {
		return err
	}

	cfg := m.container.WatchConfig()
	if debounce > 0 {
		cfg.Debounce = debounce
	}
	logger := logging.WatchLogger(m.container.LoggerProvider())
	watcher, err := watch.New(cfg, func(ctx context.Context, paths []string) error {
		logger.Debug("watch.changes", "paths", paths)
		_, err := m.build(ctx, staticcmd.BuildSiteCommand{Trigger: staticcmd.TriggerWatch})
		return err
	}, logger)
	if err != nil {
		return err
	}
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the resources held by the module.
func (m *Module) Close() error {
	if m == nil {
		return nil
	}
	return m.container.Close()
}

func (m *Module) build(ctx context.Context, cmd staticcmd.BuildSiteCommand) (*BuildResult, error) {
	var result *BuildResult
	cmd.ResultCallback = func(env staticcmd.ResultEnvelope) { result = env.Result }
	err := m.container.BuildHandler().Execute(ctx, cmd)
	return result, err
}
