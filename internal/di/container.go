// Package di wires the build pipeline from a runtime configuration.
package di

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-folio/internal/commands"
	staticcmd "github.com/goliatone/go-folio/internal/commands/static"
	"github.com/goliatone/go-folio/internal/digests"
	"github.com/goliatone/go-folio/internal/generator"
	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/internal/logging/console"
	"github.com/goliatone/go-folio/internal/logging/gologger"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/internal/metrics"
	"github.com/goliatone/go-folio/internal/posts"
	"github.com/goliatone/go-folio/internal/runtimeconfig"
	"github.com/goliatone/go-folio/internal/scanner"
	"github.com/goliatone/go-folio/internal/seo"
	"github.com/goliatone/go-folio/internal/templates"
	"github.com/goliatone/go-folio/internal/watch"
	"github.com/goliatone/go-folio/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

// Container owns every collaborator of a build. It is created once per
// process and shared by the CLI commands and watch mode.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	metrics        metrics.Recorder
	prometheus     *metrics.PrometheusRecorder
	markdown       interfaces.MarkdownParser
	template       interfaces.TemplateRenderer
	digests        digests.Store
	scanner        *scanner.Scanner
	projector      *posts.Projector
	generatorSvc   generator.Service

	buildHandler *staticcmd.BuildSiteHandler
	diffHandler  *staticcmd.DiffSiteHandler
	cleanHandler *staticcmd.CleanSiteHandler
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider selected by the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		if provider != nil {
			c.loggerProvider = provider
		}
	}
}

// WithTemplate overrides the pongo2 template renderer.
func WithTemplate(tr interfaces.TemplateRenderer) Option {
	return func(c *Container) {
		if tr != nil {
			c.template = tr
		}
	}
}

// WithMarkdownParser overrides the goldmark parser.
func WithMarkdownParser(parser interfaces.MarkdownParser) Option {
	return func(c *Container) {
		if parser != nil {
			c.markdown = parser
		}
	}
}

// WithDigestStore overrides the store selected by the cache config.
func WithDigestStore(store digests.Store) Option {
	return func(c *Container) {
		if store != nil {
			c.digests = store
		}
	}
}

// WithMetricsRecorder overrides the recorder selected by the metrics config.
func WithMetricsRecorder(recorder metrics.Recorder) Option {
	return func(c *Container) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// NewContainer validates cfg and wires the pipeline. The digest store is
// opened here, so SQL drivers connect during construction.
func NewContainer(ctx context.Context, cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	c.configureMetrics()
	if c.markdown == nil {
		c.markdown = markdown.NewGoldmarkParser(interfaces.ParseOptions{
			Extensions:  cfg.Markdown.Extensions,
			HardWraps:   cfg.Markdown.HardWraps,
			SafeMode:    cfg.Markdown.SafeMode,
			Typographer: cfg.Markdown.Typographer,
		})
	}
	if c.template == nil {
		renderer, err := templates.NewRenderer(templates.Config{Dir: cfg.Templates.Dir})
		if err != nil {
			return nil, fmt.Errorf("di: template renderer: %w", err)
		}
		c.template = renderer
	}
	if c.digests == nil {
		store, err := digests.Open(ctx, digests.Config{
			Driver: cfg.Cache.Driver,
			Path:   cfg.Cache.Path,
			DSN:    cfg.Cache.DSN,
		})
		if err != nil {
			return nil, fmt.Errorf("di: digest store: %w", err)
		}
		c.digests = store
	}

	if err := c.configurePipeline(); err != nil {
		c.Close()
		return nil, err
	}
	c.configureCommands()
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	cfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:  cfg.Level,
			Format: cfg.Format,
			Focus:  cfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		level := console.ParseLevel(cfg.Level)
		c.loggerProvider = console.NewProvider(console.Options{Writer: os.Stderr, MinLevel: &level})
	}
	return nil
}

func (c *Container) configureMetrics() {
	if c.metrics != nil {
		return
	}
	if !c.Config.Metrics.Enabled {
		c.metrics = metrics.NoopRecorder{}
		return
	}
	c.prometheus = metrics.NewPrometheusRecorder(nil)
	c.metrics = c.prometheus
}

func (c *Container) configurePipeline() error {
	cfg := c.Config

	sources := make([]scanner.Source, 0, len(cfg.Content.Sources))
	for _, src := range cfg.Content.Sources {
		sources = append(sources, scanner.Source{Name: src.Name, Path: src.Path})
	}
	c.scanner = scanner.New(scanner.Config{
		Sources:    sources,
		Extensions: cfg.Content.Extensions,
		Workers:    cfg.Content.Workers,
	}, logging.ScannerLogger(c.loggerProvider))

	projector, err := posts.NewProjector(posts.Config{
		Source:      cfg.Content.PostSource,
		PruneLength: cfg.Content.PruneLength,
		Workers:     cfg.Content.Workers,
	}, c.markdown, logging.PostsLogger(c.loggerProvider))
	if err != nil {
		return fmt.Errorf("di: post projector: %w", err)
	}
	c.projector = projector

	c.generatorSvc = generator.NewService(generator.Config{
		OutputDir: cfg.Generator.OutputDir,
		Site: seo.Site{
			Title:                  cfg.Site.Title,
			Description:            cfg.Site.Description,
			BaseURL:                cfg.Site.BaseURL,
			Image:                  cfg.Site.Image,
			TwitterUsername:        cfg.Site.TwitterUsername,
			GoogleSiteVerification: cfg.Site.GoogleSiteVerification,
		},
		Language:        cfg.Site.Language,
		PostRoutePrefix: cfg.Generator.PostRoutePrefix,
		CanonicalPrefix: cfg.Generator.CanonicalPrefix,
		Incremental:     cfg.Generator.Incremental,
		GenerateSitemap: cfg.Generator.GenerateSitemap,
		GenerateRobots:  cfg.Generator.GenerateRobots,
		Feed: generator.FeedConfig{
			Path:     cfg.Feed.Path,
			Limit:    cfg.Feed.Limit,
			Atom:     cfg.Feed.Atom,
			AtomPath: cfg.Feed.AtomPath,
		},
		Assets: generator.AssetsConfig{
			Dir:               cfg.Assets.Dir,
			CardImageName:     cfg.Assets.CardImageName,
			FallbackDirectory: cfg.Assets.FallbackDirectory,
		},
		AboutPath: cfg.Pages.About,
		Protected: protectedPaths(cfg),
		Workers:   cfg.Generator.Workers,
	}, generator.Dependencies{
		Scanner:   c.scanner,
		Projector: c.projector,
		Renderer:  c.template,
		Markdown:  c.markdown,
		Digests:   c.digests,
		Logger:    logging.GeneratorLogger(c.loggerProvider),
		Metrics:   c.metrics,
	})
	return nil
}

func (c *Container) configureCommands() {
	logger := commands.CommandLogger(c.loggerProvider, "static")

	c.buildHandler = staticcmd.NewBuildSiteHandler(c.generatorSvc, logger,
		commands.WithTelemetry(commands.ChainTelemetry(
			commands.DefaultTelemetry[staticcmd.BuildSiteCommand](logger),
			metricsTextfileTelemetry[staticcmd.BuildSiteCommand](c),
		)),
	)
	c.diffHandler = staticcmd.NewDiffSiteHandler(c.generatorSvc, logger)
	c.cleanHandler = staticcmd.NewCleanSiteHandler(c.generatorSvc, logger)
}

// metricsTextfileTelemetry exports the Prometheus registry after every
// execution when a textfile path is configured.
func metricsTextfileTelemetry[T command.Message](c *Container) commands.Telemetry[T] {
	return func(_ context.Context, _ T, info commands.TelemetryInfo) {
		if c.prometheus == nil || c.Config.Metrics.Textfile == "" {
			return
		}
		if err := c.prometheus.WriteTextfile(c.Config.Metrics.Textfile); err != nil {
			info.Logger.Warn("metrics.textfile.failed", "error", err)
		}
	}
}

// LoggerProvider returns the configured logger provider.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// Generator returns the generator service.
func (c *Container) Generator() generator.Service {
	return c.generatorSvc
}

// TemplateRenderer returns the page template renderer.
func (c *Container) TemplateRenderer() interfaces.TemplateRenderer {
	return c.template
}

// DigestStore returns the incremental build snapshot store.
func (c *Container) DigestStore() digests.Store {
	return c.digests
}

// Metrics returns the build metrics recorder.
func (c *Container) Metrics() metrics.Recorder {
	return c.metrics
}

// BuildHandler returns the command handler for builds.
func (c *Container) BuildHandler() *staticcmd.BuildSiteHandler {
	return c.buildHandler
}

// DiffHandler returns the command handler for dry-run diffs.
func (c *Container) DiffHandler() *staticcmd.DiffSiteHandler {
	return c.diffHandler
}

// CleanHandler returns the command handler for cleaning output.
func (c *Container) CleanHandler() *staticcmd.CleanSiteHandler {
	return c.cleanHandler
}

func protectedPaths(cfg runtimeconfig.Config) []string {
	paths := []string{cfg.Templates.Dir}
	if cfg.Cache.Driver == "" || cfg.Cache.Driver == "file" {
		paths = append(paths, cfg.Cache.Path)
	}
	return paths
}

// WatchConfig lists the inputs of a build for watch mode. The output
// directory and the digest manifest are ignored so a build never triggers
// itself.
func (c *Container) WatchConfig() watch.Config {
	cfg := c.Config
	roots := make([]string, 0, len(cfg.Content.Sources)+3)
	for _, src := range cfg.Content.Sources {
		roots = append(roots, src.Path)
	}
	for _, p := range []string{cfg.Assets.Dir, cfg.Templates.Dir, cfg.Pages.About} {
		if strings.TrimSpace(p) != "" {
			roots = append(roots, p)
		}
	}
	ignore := []string{cfg.Generator.OutputDir}
	if cfg.Cache.Driver == "" || cfg.Cache.Driver == "file" {
		ignore = append(ignore, cfg.Cache.Path)
	}
	if cfg.Metrics.Textfile != "" {
		ignore = append(ignore, cfg.Metrics.Textfile)
	}
	return watch.Config{Roots: roots, Ignore: ignore, Debounce: cfg.Watch.Debounce}
}

// Close releases the digest store.
func (c *Container) Close() error {
	if c == nil || c.digests == nil {
		return nil
	}
	return c.digests.Close()
}
