package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/digests"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/internal/posts"
	"github.com/goliatone/go-folio/internal/scanner"
	"github.com/goliatone/go-folio/internal/seo"
	"github.com/goliatone/go-folio/internal/templates"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

const (
	helloPost = "---\ntitle: Hello\ndate: \"2024-01-02\"\ntags: [go]\n---\nHello **world**, this is the first post.\n"
	tripPost  = "---\ntitle: Trip\ndate: \"2024-03-01\"\n---\nNotes from the trip.\n"
)

type testSite struct {
	root    string
	posts   string
	output  string
	assets  string
	store   digests.Store
	fixedAt time.Time
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	root := t.TempDir()
	site := &testSite{
		root:    root,
		posts:   filepath.Join(root, "content", "posts"),
		output:  filepath.Join(root, "public"),
		assets:  filepath.Join(root, "static"),
		store:   digests.NewMemoryStore(),
		fixedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	writeFile(t, filepath.Join(site.posts, "hello.md"), helloPost)
	writeFile(t, filepath.Join(site.posts, "2023", "trip", "index.md"), tripPost)
	return site
}

func (ts *testSite) config() Config {
	return Config{
		OutputDir: ts.output,
		Site: seo.Site{
			Title:       "Folio",
			Description: "Notes and projects",
			BaseURL:     "https://example.com",
		},
		GenerateSitemap: true,
		GenerateRobots:  true,
		Workers:         2,
	}
}

func (ts *testSite) service(t *testing.T, cfg Config, themeDir string) *service {
	t.Helper()
	parser := markdown.NewGoldmarkParser(interfaces.ParseOptions{})
	projector, err := posts.NewProjector(posts.Config{Workers: 2}, parser, nil)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	renderer, err := templates.NewRenderer(templates.Config{Dir: themeDir})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	svc := NewService(cfg, Dependencies{
		Scanner: scanner.New(scanner.Config{
			Sources: []scanner.Source{{Name: "posts", Path: ts.posts}},
			Workers: 2,
		}, nil),
		Projector: projector,
		Renderer:  renderer,
		Markdown:  parser,
		Digests:   ts.store,
	}).(*service)
	svc.now = func() time.Time { return ts.fixedAt }
	return svc
}

func TestBuildWritesSite(t *testing.T) {
	site := newTestSite(t)
	svc := site.service(t, site.config(), "")

	result, err := svc.Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(result.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(result.Posts))
	}
	if result.PagesBuilt != 4 || result.PagesReused != 0 {
		t.Fatalf("expected 4 pages built, got built=%d reused=%d", result.PagesBuilt, result.PagesReused)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", result.Issues)
	}

	for _, rel := range []string{
		"post/hello/index.html",
		"post/2023/trip/index.html",
		"index.html",
		"about/index.html",
		"rss.xml",
		"sitemap.xml",
		"robots.txt",
	} {
		if _, err := os.Stat(filepath.Join(site.output, rel)); err != nil {
			t.Fatalf("expected %s in output: %v", rel, err)
		}
	}

	hello := readFile(t, filepath.Join(site.output, "post", "hello", "index.html"))
	if !strings.Contains(hello, "<strong>world</strong>") {
		t.Fatalf("expected rendered body in post page, got %s", hello)
	}
	if !strings.Contains(hello, "January 02, 2024") {
		t.Fatalf("expected display date in post page, got %s", hello)
	}
	if !strings.Contains(hello, `<link rel="canonical" href="https://example.com/hello/">`) {
		t.Fatalf("expected canonical link in post page, got %s", hello)
	}

	index := readFile(t, filepath.Join(site.output, "index.html"))
	trip, first := strings.Index(index, "/post/2023/trip/"), strings.Index(index, "/post/hello/")
	if trip < 0 || first < 0 || trip > first {
		t.Fatalf("expected newest post listed first, got %s", index)
	}
	if !strings.Contains(index, "01 Mar, 2024") {
		t.Fatalf("expected short date in index, got %s", index)
	}

	about := readFile(t, filepath.Join(site.output, "about", "index.html"))
	if !strings.Contains(about, "Notes and projects") {
		t.Fatalf("expected about page to fall back to the site description, got %s", about)
	}

	leftovers, _ := filepath.Glob(filepath.Join(site.root, ".public.stage-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected staging directories to be cleaned up, got %v", leftovers)
	}
}

func TestBuildRendersAboutMarkdown(t *testing.T) {
	site := newTestSite(t)
	aboutPath := filepath.Join(site.root, "content", "about.md")
	writeFile(t, aboutPath, "---\ntitle: Who\n---\nI write *code*.\n")
	cfg := site.config()
	cfg.AboutPath = aboutPath

	if _, err := site.service(t, cfg, "").Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	about := readFile(t, filepath.Join(site.output, "about", "index.html"))
	if !strings.Contains(about, "<em>code</em>") || !strings.Contains(about, "<h1>Who</h1>") {
		t.Fatalf("expected rendered about page, got %s", about)
	}
}

func TestBuildFeedHonoursLimitAndOrder(t *testing.T) {
	site := newTestSite(t)
	writeFile(t, filepath.Join(site.posts, "old.md"), "---\ntitle: Old\ndate: \"2020-01-01\"\n---\nOld news.\n")
	cfg := site.config()
	cfg.Feed = FeedConfig{Limit: 2, Atom: true}

	result, err := site.service(t, cfg, "").Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.FeedItems != 2 {
		t.Fatalf("expected 2 feed items, got %d", result.FeedItems)
	}

	rss := readFile(t, filepath.Join(site.output, "rss.xml"))
	if n := strings.Count(rss, "<item>"); n != 2 {
		t.Fatalf("expected 2 items, got %d", n)
	}
	if strings.Contains(rss, "Old news") {
		t.Fatalf("expected oldest post to be cut by the limit")
	}
	trip, hello := strings.Index(rss, "<title>Trip</title>"), strings.Index(rss, "<title>Hello</title>")
	if trip < 0 || hello < 0 || trip > hello {
		t.Fatalf("expected items newest first, got %s", rss)
	}
	if !strings.Contains(rss, `<guid isPermaLink="true">https://example.com/2023/trip/</guid>`) {
		t.Fatalf("expected guid to equal link, got %s", rss)
	}
	if !strings.Contains(rss, "<content:encoded><![CDATA[") {
		t.Fatalf("expected encoded content, got %s", rss)
	}
	if _, err := os.Stat(filepath.Join(site.output, "atom.xml")); err != nil {
		t.Fatalf("expected atom feed: %v", err)
	}
}

func TestBuildSlugCollisionIsFatal(t *testing.T) {
	site := newTestSite(t)
	svc := site.service(t, site.config(), "")
	if _, err := svc.Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	before := readFile(t, filepath.Join(site.output, "index.html"))

	writeFile(t, filepath.Join(site.posts, "hello", "index.md"), helloPost)
	_, err := svc.Build(context.Background(), BuildOptions{})
	if err == nil {
		t.Fatal("expected slug collision error")
	}
	if !errors.Is(err, diagnostics.ErrSlugCollision) || !diagnostics.IsFatal(err) {
		t.Fatalf("expected fatal slug collision, got %v", err)
	}
	if after := readFile(t, filepath.Join(site.output, "index.html")); after != before {
		t.Fatalf("expected previous output to be untouched")
	}
}

func TestBuildIgnoresSlugClashOutsidePostSource(t *testing.T) {
	site := newTestSite(t)
	notes := filepath.Join(site.root, "content", "notes")
	writeFile(t, filepath.Join(notes, "readme.md"), "---\ntitle: Readme\n---\nOne.\n")
	writeFile(t, filepath.Join(notes, "readme", "index.md"), "---\ntitle: Readme again\n---\nTwo.\n")

	svc := site.service(t, site.config(), "")
	svc.deps.Scanner = scanner.New(scanner.Config{
		Sources: []scanner.Source{
			{Name: "posts", Path: site.posts},
			{Name: "notes", Path: notes},
		},
		Workers: 2,
	}, nil)

	result, err := svc.Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Posts) != 2 {
		t.Fatalf("expected only the 2 posts, got %d", len(result.Posts))
	}
}

func TestBuildRouteCollisionWithFixedPagesIsFatal(t *testing.T) {
	cases := map[string]string{
		"about.md": "about/index.html",
		"index.md": "index.html",
	}
	for file, output := range cases {
		site := newTestSite(t)
		writeFile(t, filepath.Join(site.posts, file), "---\ntitle: Clash\ndate: \"2024-02-02\"\n---\nClash body.\n")
		cfg := site.config()
		cfg.PostRoutePrefix = "/"

		_, err := site.service(t, cfg, "").Build(context.Background(), BuildOptions{})
		if !errors.Is(err, diagnostics.ErrRouteCollision) || !diagnostics.IsFatal(err) {
			t.Fatalf("%s: expected fatal route collision, got %v", file, err)
		}
		if !strings.Contains(err.Error(), output) {
			t.Fatalf("%s: expected %s named in error, got %v", file, output, err)
		}
		if _, statErr := os.Stat(site.output); !os.IsNotExist(statErr) {
			t.Fatalf("%s: expected no output, stat err=%v", file, statErr)
		}
	}
}

func TestBuildRouteCollisionWithFeed(t *testing.T) {
	site := newTestSite(t)
	cfg := site.config()
	cfg.Feed.Path = "post/hello/index.html"

	_, err := site.service(t, cfg, "").Build(context.Background(), BuildOptions{})
	if !errors.Is(err, diagnostics.ErrRouteCollision) {
		t.Fatalf("expected route collision with feed, got %v", err)
	}
}

func TestBuildRefusesOutputDirContainingSources(t *testing.T) {
	site := newTestSite(t)
	cfg := site.config()
	cfg.OutputDir = site.root

	_, err := site.service(t, cfg, "").Build(context.Background(), BuildOptions{})
	if !errors.Is(err, errOutputDirUnsafe) {
		t.Fatalf("expected unsafe output dir error, got %v", err)
	}
	if got := readFile(t, filepath.Join(site.posts, "hello.md")); got != helloPost {
		t.Fatalf("expected source post to survive, got %q", got)
	}

	if err := site.service(t, cfg, "").Clean(context.Background()); !errors.Is(err, errOutputDirUnsafe) {
		t.Fatalf("expected clean to refuse, got %v", err)
	}
	if got := readFile(t, filepath.Join(site.posts, "hello.md")); got != helloPost {
		t.Fatalf("expected source post to survive clean, got %q", got)
	}
}

func TestFailedRenderLeavesPreviousOutput(t *testing.T) {
	site := newTestSite(t)
	if _, err := site.service(t, site.config(), "").Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	before := readFile(t, filepath.Join(site.output, "post", "hello", "index.html"))

	theme := filepath.Join(site.root, "theme")
	writeFile(t, filepath.Join(theme, "post.html"), "{{ page.title|no_such_filter }}")
	writeFile(t, filepath.Join(site.posts, "new.md"), "---\ntitle: New\ndate: \"2024-05-05\"\n---\nNew.\n")

	_, err := site.service(t, site.config(), theme).Build(context.Background(), BuildOptions{})
	if err == nil {
		t.Fatal("expected render error")
	}
	if after := readFile(t, filepath.Join(site.output, "post", "hello", "index.html")); after != before {
		t.Fatalf("expected previous post page to be untouched")
	}
	if _, err := os.Stat(filepath.Join(site.output, "post", "new", "index.html")); !os.IsNotExist(err) {
		t.Fatalf("expected no partial output, stat err=%v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(site.root, ".public.stage-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected staging directory to be removed, got %v", leftovers)
	}
}

func TestBuildResolvesCardImages(t *testing.T) {
	site := newTestSite(t)
	writeFile(t, filepath.Join(site.assets, "home", "card.png"), "png")
	writeFile(t, filepath.Join(site.assets, "css", "site.css"), "body{}")
	cfg := site.config()
	cfg.Assets = AssetsConfig{Dir: site.assets}

	result, err := site.service(t, cfg, "").Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.AssetsBuilt != 2 {
		t.Fatalf("expected 2 assets copied, got %d", result.AssetsBuilt)
	}
	if _, err := os.Stat(filepath.Join(site.output, "css", "site.css")); err != nil {
		t.Fatalf("expected static asset in output: %v", err)
	}

	hello := readFile(t, filepath.Join(site.output, "post", "hello", "index.html"))
	if !strings.Contains(hello, `src="/home/card.png"`) {
		t.Fatalf("expected fallback card image, got %s", hello)
	}
	if !strings.Contains(hello, `<meta property="og:image" content="https://example.com/home/card.png">`) {
		t.Fatalf("expected card image in og tags, got %s", hello)
	}

	trip := readFile(t, filepath.Join(site.output, "post", "2023", "trip", "index.html"))
	if strings.Contains(trip, `class="card"`) {
		t.Fatalf("expected trip page without card image")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected one issue, got %v", result.Issues)
	}
	issue := result.Issues[0]
	if issue.Severity != diagnostics.SeverityDegraded || issue.Code != diagnostics.CodeCardImageUnresolved || issue.Path != "posts/2023/trip/index.md" {
		t.Fatalf("unexpected issue %+v", issue)
	}
}

func TestIncrementalBuildReusesUnchangedPosts(t *testing.T) {
	site := newTestSite(t)
	cfg := site.config()
	cfg.Incremental = true
	svc := site.service(t, cfg, "")
	ctx := context.Background()

	first, err := svc.Build(ctx, BuildOptions{})
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.PagesReused != 0 || len(first.Changes.Added) != 2 {
		t.Fatalf("expected a full first build, got reused=%d changes=%+v", first.PagesReused, first.Changes)
	}

	second, err := svc.Build(ctx, BuildOptions{})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if second.PagesReused != 2 || second.PagesBuilt != 2 {
		t.Fatalf("expected both posts reused, got built=%d reused=%d", second.PagesBuilt, second.PagesReused)
	}
	if _, err := os.Stat(filepath.Join(site.output, "post", "hello", "index.html")); err != nil {
		t.Fatalf("expected reused page in committed output: %v", err)
	}

	writeFile(t, filepath.Join(site.posts, "hello.md"), strings.Replace(helloPost, "first post", "edited post", 1))
	third, err := svc.Build(ctx, BuildOptions{})
	if err != nil {
		t.Fatalf("third build: %v", err)
	}
	if third.PagesReused != 1 || len(third.Changes.Changed) != 1 {
		t.Fatalf("expected one changed post, got reused=%d changes=%+v", third.PagesReused, third.Changes)
	}
	if hello := readFile(t, filepath.Join(site.output, "post", "hello", "index.html")); !strings.Contains(hello, "edited post") {
		t.Fatalf("expected changed post to be re-rendered")
	}

	forced, err := svc.Build(ctx, BuildOptions{Force: true})
	if err != nil {
		t.Fatalf("forced build: %v", err)
	}
	if forced.PagesReused != 0 {
		t.Fatalf("expected force to render everything, got %d reused", forced.PagesReused)
	}
}

func TestIncrementalBuildRerendersAfterYearChange(t *testing.T) {
	site := newTestSite(t)
	cfg := site.config()
	cfg.Incremental = true
	svc := site.service(t, cfg, "")
	ctx := context.Background()

	if _, err := svc.Build(ctx, BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC) }

	next, err := svc.Build(ctx, BuildOptions{})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if next.PagesReused != 0 {
		t.Fatalf("expected every post re-rendered in the new year, got %d reused", next.PagesReused)
	}
	if hello := readFile(t, filepath.Join(site.output, "post", "hello", "index.html")); !strings.Contains(hello, "2025") {
		t.Fatalf("expected footer year 2025 in post page")
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	site := newTestSite(t)
	svc := site.service(t, site.config(), "")

	result, err := svc.Build(context.Background(), BuildOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !result.DryRun || len(result.Changes.Added) != 2 || result.PagesBuilt != 4 {
		t.Fatalf("unexpected dry run result %+v", result)
	}
	if _, err := os.Stat(site.output); !os.IsNotExist(err) {
		t.Fatalf("expected no output directory, stat err=%v", err)
	}
	snapshot, _ := site.store.Load(context.Background())
	if len(snapshot) != 0 {
		t.Fatalf("expected digest snapshot to stay empty, got %d records", len(snapshot))
	}
}

func TestBuildExcludesInvalidPosts(t *testing.T) {
	site := newTestSite(t)
	writeFile(t, filepath.Join(site.posts, "draft.md"), "---\ndate: \"2024-02-02\"\n---\nNo title.\n")
	writeFile(t, filepath.Join(site.posts, "broken.md"), "---\ntitle: [unclosed\n---\nBroken.\n")

	result, err := site.service(t, site.config(), "").Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(result.Posts) != 2 {
		t.Fatalf("expected invalid posts to be excluded, got %d posts", len(result.Posts))
	}
	codes := map[string]string{}
	for _, issue := range result.Issues {
		codes[issue.Path] = issue.Code
	}
	if codes["posts/draft.md"] != diagnostics.CodeFrontMatterInvalid {
		t.Fatalf("expected invalid frontmatter warning for draft, got %v", result.Issues)
	}
	if codes["posts/broken.md"] != diagnostics.CodeFrontMatterUnreadable {
		t.Fatalf("expected unreadable frontmatter warning for broken, got %v", result.Issues)
	}
}

func TestCleanRemovesOutputAndDigests(t *testing.T) {
	site := newTestSite(t)
	svc := site.service(t, site.config(), "")
	ctx := context.Background()
	if _, err := svc.Build(ctx, BuildOptions{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(site.root, ".public.stage-stale"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := svc.Clean(ctx); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(site.output); !os.IsNotExist(err) {
		t.Fatalf("expected output removed, stat err=%v", err)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(site.root, ".public.stage-*")); len(leftovers) != 0 {
		t.Fatalf("expected stale staging directories removed, got %v", leftovers)
	}
	if snapshot, _ := site.store.Load(ctx); len(snapshot) != 0 {
		t.Fatalf("expected digests reset, got %d", len(snapshot))
	}
}

func TestBuildRequiresDependencies(t *testing.T) {
	svc := NewService(Config{OutputDir: t.TempDir()}, Dependencies{})
	if _, err := svc.Build(context.Background(), BuildOptions{}); !errors.Is(err, errRendererRequired) {
		t.Fatalf("expected renderer error, got %v", err)
	}
}

func TestBuildHonoursCanceledContext(t *testing.T) {
	site := newTestSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := site.service(t, site.config(), "").Build(ctx, BuildOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
