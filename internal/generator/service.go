// Package generator turns projected posts into the static site: post,
// index and about pages rendered through templates, the syndication feed,
// sitemap, robots file and the verbatim static assets. Output is staged and
// swapped in atomically so a failed build never leaves a partial site.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/digests"
	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/internal/metrics"
	"github.com/goliatone/go-folio/internal/posts"
	"github.com/goliatone/go-folio/internal/scanner"
	"github.com/goliatone/go-folio/internal/seo"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

const defaultPostRoutePrefix = "/post"

var (
	errRendererRequired  = errors.New("generator: template renderer is required")
	errScannerRequired   = errors.New("generator: content scanner is required")
	errProjectorRequired = errors.New("generator: post projector is required")
)

// Service describes the static site generator contract.
type Service interface {
	Build(ctx context.Context, opts BuildOptions) (*BuildResult, error)
	Clean(ctx context.Context) error
}

// Config captures runtime behaviour toggles for the generator.
type Config struct {
	OutputDir string
	Site      seo.Site
	Language  string
	// PostRoutePrefix is prepended to the slug to form a post route.
	PostRoutePrefix string
	// CanonicalPrefix is prepended to the slug in feed links and canonical
	// tags.
	CanonicalPrefix string
	Incremental     bool
	GenerateSitemap bool
	GenerateRobots  bool
	Feed            FeedConfig
	Assets          AssetsConfig
	// AboutPath is an optional markdown file rendered as the about page body.
	AboutPath string
	// Protected lists paths the output directory must never equal or
	// contain, such as the theme directory or the digest cache. Content
	// source roots, the assets directory and AboutPath are always protected.
	Protected []string
	Workers   int
}

// BuildOptions narrows the behaviour of a single run.
type BuildOptions struct {
	// DryRun renders everything but writes nothing and keeps the digest
	// snapshot unchanged.
	DryRun bool
	// Force renders every page even when incremental reuse is possible.
	Force bool
}

// BuildResult reports aggregated build metadata.
type BuildResult struct {
	Posts       []*content.Post
	Pages       []content.Page
	Rendered    []RenderedPage
	PagesBuilt  int
	PagesReused int
	AssetsBuilt int
	FeedItems   int
	FilesStaged int
	Changes     digests.Changes
	Issues      []diagnostics.Issue
	OutputDir   string
	Duration    time.Duration
	DryRun      bool
}

// ContentScanner discovers content nodes.
type ContentScanner interface {
	Scan(ctx context.Context) (*scanner.Result, error)
}

// PostProjector turns nodes into posts.
type PostProjector interface {
	ProjectAll(ctx context.Context, nodes []*content.ContentNode, slugs map[uuid.UUID]string) (*posts.Result, error)
}

// rootLister is implemented by scanners that expose their source roots.
type rootLister interface {
	Roots() []string
}

// nodeFilter is implemented by projectors that only accept some nodes.
type nodeFilter interface {
	Accepts(node *content.ContentNode) bool
}

type fingerprinter interface {
	Fingerprint() string
}

// Dependencies lists the collaborators of the generator.
type Dependencies struct {
	Scanner   ContentScanner
	Projector PostProjector
	Renderer  interfaces.TemplateRenderer
	// Markdown renders the about page. Defaults to the goldmark parser.
	Markdown interfaces.MarkdownParser
	// Digests holds the snapshot used for incremental builds. Defaults to an
	// in-memory store.
	Digests digests.Store
	Logger  interfaces.Logger
	Metrics metrics.Recorder
}

// NewService wires a generator implementation with the provided configuration and dependencies.
func NewService(cfg Config, deps Dependencies) Service {
	if strings.TrimSpace(cfg.PostRoutePrefix) == "" {
		cfg.PostRoutePrefix = defaultPostRoutePrefix
	}
	cfg.Feed = cfg.Feed.withDefaults()
	cfg.Assets = cfg.Assets.withDefaults()

	svc := &service{
		cfg:      cfg,
		deps:     deps,
		now:      time.Now,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		markdown: deps.Markdown,
	}
	if svc.logger == nil {
		svc.logger = logging.NoOp()
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NoopRecorder{}
	}
	if svc.markdown == nil {
		svc.markdown = markdown.NewGoldmarkParser(interfaces.ParseOptions{})
	}
	if svc.deps.Digests == nil {
		svc.deps.Digests = digests.NewMemoryStore()
	}
	return svc
}

type service struct {
	cfg      Config
	deps     Dependencies
	now      func() time.Time
	logger   interfaces.Logger
	metrics  metrics.Recorder
	markdown interfaces.MarkdownParser
}

func (s *service) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case s.deps.Renderer == nil:
		return nil, errRendererRequired
	case s.deps.Scanner == nil:
		return nil, errScannerRequired
	case s.deps.Projector == nil:
		return nil, errProjectorRequired
	}

	start := time.Now()
	report := diagnostics.NewReport()
	result := &BuildResult{DryRun: opts.DryRun, OutputDir: s.cfg.OutputDir}
	s.logger.Info("generator.build.start",
		"output", s.cfg.OutputDir,
		"incremental", s.cfg.Incremental,
		"force", opts.Force,
		"dry_run", opts.DryRun,
	)

	err := s.build(ctx, opts, report, result)

	result.Issues = report.Issues()
	result.Duration = time.Since(start)
	s.finish(result, report, err)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (s *service) build(ctx context.Context, opts BuildOptions, report *diagnostics.Report, result *BuildResult) error {
	plan, err := s.plan(ctx, report, opts)
	if err != nil {
		return err
	}
	result.Posts = plan.Posts
	result.Changes = plan.Changes
	result.Pages = make([]content.Page, 0, len(plan.Pages))
	for _, planned := range plan.Pages {
		result.Pages = append(result.Pages, planned.Page)
	}

	var writer artifactWriter = discardWriter{}
	var staged *stagedWriter
	if !opts.DryRun {
		staged, err = newStagedWriter(s.cfg.OutputDir, s.protectedPaths()...)
		if err != nil {
			return err
		}
		writer = staged
		defer func() {
			if staged != nil {
				_ = staged.Discard()
			}
		}()
	}

	stageStart := time.Now()
	assets, err := s.copyAssets(ctx, writer)
	if err != nil {
		return err
	}
	result.AssetsBuilt = assets

	rendered, err := s.renderPages(ctx, writer, plan.Pages)
	if err != nil {
		return err
	}
	result.Rendered = rendered
	for _, page := range rendered {
		if page.Reused {
			result.PagesReused++
		} else {
			result.PagesBuilt++
		}
	}
	s.observe("render", stageStart)

	stageStart = time.Now()
	items := s.buildFeedItems(plan.Posts)
	if _, err := s.writeFeeds(ctx, writer, items, plan.GeneratedAt); err != nil {
		return err
	}
	result.FeedItems = len(items)
	if err := s.writeSitemapAndRobots(ctx, writer, plan); err != nil {
		return err
	}
	s.observe("feed", stageStart)

	if opts.DryRun {
		return nil
	}

	stageStart = time.Now()
	result.FilesStaged = staged.Files()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := staged.Commit(); err != nil {
		return err
	}
	staged = nil
	s.observe("commit", stageStart)

	if err := s.deps.Digests.Save(ctx, plan.Records); err != nil {
		report.Degrade("commit", s.cfg.OutputDir, diagnostics.CodeOutputWriteFailed, "digest snapshot not saved", err)
	}
	return nil
}

func (s *service) finish(result *BuildResult, report *diagnostics.Report, err error) {
	report.Log(s.logger)

	s.metrics.ObserveBuildDuration(result.Duration)
	s.metrics.AddPosts(len(result.Posts))
	s.metrics.AddIssues(string(diagnostics.SeverityWarning), report.Count(diagnostics.SeverityWarning))
	s.metrics.AddIssues(string(diagnostics.SeverityDegraded), report.Count(diagnostics.SeverityDegraded))
	if !result.DryRun && err == nil {
		s.metrics.AddPagesWritten(result.PagesBuilt)
		s.metrics.AddPagesReused(result.PagesReused)
	}

	fields := []any{
		"posts", len(result.Posts),
		"pages_built", result.PagesBuilt,
		"pages_reused", result.PagesReused,
		"issues", len(result.Issues),
		"duration", result.Duration,
	}
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		s.metrics.IncBuildOutcome(metrics.OutcomeCanceled)
		s.logger.Warn("generator.build.canceled", append(fields, "error", err)...)
	case err != nil:
		s.metrics.AddIssues(string(diagnostics.SeverityFatal), 1)
		s.metrics.IncBuildOutcome(metrics.OutcomeFailed)
		s.logger.Error("generator.build.failed", append(fields, "error", err, "fatal", diagnostics.IsFatal(err))...)
	case report.Len() > 0:
		s.metrics.IncBuildOutcome(metrics.OutcomeWarning)
		s.logger.Info("generator.build.completed", fields...)
	default:
		s.metrics.IncBuildOutcome(metrics.OutcomeSuccess)
		s.logger.Info("generator.build.completed", fields...)
	}
}

// Clean removes the output directory, leftover staging directories and the
// digest snapshot.
func (s *service) Clean(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := resolveOutputDir(s.cfg.OutputDir, s.protectedPaths()...)
	if err != nil {
		return err
	}
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(target), stagePattern(target)))
	if err != nil {
		return fmt.Errorf("generator: list staging directories: %w", err)
	}
	for _, dir := range append(leftovers, target) {
		if err := os.RemoveAll(dir); err != nil {
			return diagnostics.OutputFailed(dir, err)
		}
	}
	if err := s.deps.Digests.Save(ctx, nil); err != nil {
		return fmt.Errorf("generator: reset digests: %w", err)
	}
	s.logger.Info("generator.clean.completed", "output", target, "staging_removed", len(leftovers))
	return nil
}

// protectedPaths lists every input the output directory must not swallow.
func (s *service) protectedPaths() []string {
	paths := append([]string{s.cfg.Assets.Dir, s.cfg.AboutPath}, s.cfg.Protected...)
	if lister, ok := s.deps.Scanner.(rootLister); ok {
		paths = append(paths, lister.Roots()...)
	}
	return paths
}

func (s *service) observe(stage string, start time.Time) {
	s.metrics.ObserveStageDuration(stage, time.Since(start))
}

func (s *service) effectiveWorkerCount(items int) int {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
