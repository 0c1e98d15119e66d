package posts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/identity"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

func TestProjectBuildsPost(t *testing.T) {
	projector := newProjector(t, nil)
	body := "# Heading\n\n" + strings.Repeat("lorem ipsum dolor ", 20)
	n := node("posts", "2021/hello/index.md", map[string]any{
		"title":    "Hello",
		"date":     "2021-05-06",
		"keywords": []any{"go", "go", " blog "},
	}, body)

	post, issues, err := projector.Project(n, "/2021/hello/")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
	if post.Title != "Hello" || post.Slug != "/2021/hello/" {
		t.Fatalf("unexpected post %+v", post)
	}
	if !post.Date.Equal(time.Date(2021, 5, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %s", post.Date)
	}
	if post.Tags == nil || len(post.Tags) != 0 {
		t.Fatalf("expected empty non-nil tags, got %#v", post.Tags)
	}
	if len(post.Keywords) != 2 || post.Keywords[0] != "go" || post.Keywords[1] != "blog" {
		t.Fatalf("unexpected keywords %#v", post.Keywords)
	}
	if post.ID != identity.PostUUID(n.ID) || post.ParentID != n.ID {
		t.Fatalf("unexpected ids %s / %s", post.ID, post.ParentID)
	}
	if post.RelativeDirectory != "2021/hello" {
		t.Fatalf("unexpected relative directory %q", post.RelativeDirectory)
	}
	if !strings.Contains(post.Body, `<h1 id="heading">Heading</h1>`) {
		t.Fatalf("expected rendered body, got %s", post.Body)
	}
	if n := utf8.RuneCountInString(post.Excerpt); n == 0 || n > markdown.DefaultPruneLength {
		t.Fatalf("expected excerpt within prune length, got %d runes", n)
	}
	if !strings.HasPrefix(post.Excerpt, "Heading lorem ipsum") {
		t.Fatalf("expected markup-free excerpt, got %q", post.Excerpt)
	}
	if got := post.ExcerptWithLength(20); got != "Heading lorem ipsum" {
		t.Fatalf("unexpected custom excerpt %q", got)
	}
	if len(post.ContentDigest) != 64 {
		t.Fatalf("expected sha256 digest, got %q", post.ContentDigest)
	}
}

func TestProjectAcceptsDecodedTimestamps(t *testing.T) {
	projector := newProjector(t, nil)
	date := time.Date(2020, 1, 2, 10, 0, 0, 0, time.FixedZone("X", 3600))
	post, _, err := projector.Project(node("posts", "a.md", map[string]any{"title": "A", "date": date}, "a"), "/a/")
	if err != nil || post == nil {
		t.Fatalf("expected post, got %v / %v", post, err)
	}
	if !post.Date.Equal(date) || post.Date.Location() != time.UTC {
		t.Fatalf("expected UTC normalised date, got %s", post.Date)
	}
}

func TestProjectExcludesInvalidFrontMatter(t *testing.T) {
	projector := newProjector(t, nil)

	cases := map[string]map[string]any{
		"missing title": {"date": "2021-01-01"},
		"blank title":   {"title": "   ", "date": "2021-01-01"},
		"numeric title": {"title": 42, "date": "2021-01-01"},
		"missing date":  {"title": "T"},
		"garbage date":  {"title": "T", "date": "next tuesday"},
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			post, issues, err := projector.Project(node("posts", "x.md", meta, "x"), "/x/")
			if err != nil {
				t.Fatalf("expected local failure, got fatal %v", err)
			}
			if post != nil {
				t.Fatalf("expected post to be excluded, got %+v", post)
			}
			if len(issues) != 1 || issues[0].Severity != diagnostics.SeverityWarning || issues[0].Path != "posts/x.md" {
				t.Fatalf("expected one warning naming the file, got %v", issues)
			}
		})
	}
}

func TestProjectDegradesMalformedOptionalFields(t *testing.T) {
	projector := newProjector(t, nil)
	post, issues, err := projector.Project(node("posts", "x.md", map[string]any{
		"title": "T",
		"date":  "2021-01-01",
		"tags":  map[string]any{"nested": true},
	}, "x"), "/x/")
	if err != nil || post == nil {
		t.Fatalf("expected post to survive, got %v / %v", post, err)
	}
	if len(post.Tags) != 0 {
		t.Fatalf("expected tags to fall back to empty, got %v", post.Tags)
	}
	if len(issues) != 1 || issues[0].Severity != diagnostics.SeverityDegraded || issues[0].Code != diagnostics.CodeFieldIgnored {
		t.Fatalf("expected degraded issue, got %v", issues)
	}
}

func TestProjectRenderFailureIsFatal(t *testing.T) {
	projector := newProjector(t, failingParser{})
	_, _, err := projector.Project(node("posts", "x.md", map[string]any{"title": "T", "date": "2021-01-01"}, "x"), "/x/")
	if !errors.Is(err, diagnostics.ErrRenderFailed) {
		t.Fatalf("expected render failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "posts/x.md") {
		t.Fatalf("expected error to name file, got %q", err.Error())
	}
}

func TestProjectAllFiltersSourceAndCollectsIssues(t *testing.T) {
	projector := newProjector(t, nil)
	good := node("posts", "good.md", map[string]any{"title": "Good", "date": "2021-01-01"}, "good")
	bad := node("posts", "bad.md", map[string]any{"date": "2021-01-01"}, "bad")
	page := node("pages", "about.md", map[string]any{"title": "About", "date": "2021-01-01"}, "about")

	slugs := map[uuid.UUID]string{good.ID: "/good/", bad.ID: "/bad/", page.ID: "/about/"}
	result, err := projector.ProjectAll(context.Background(), []*content.ContentNode{bad, good, page}, slugs)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if len(result.Posts) != 1 || result.Posts[0].Slug != "/good/" {
		t.Fatalf("expected only the good post, got %v", result.Posts)
	}
	if len(result.Issues) != 1 || result.Issues[0].Path != "posts/bad.md" {
		t.Fatalf("expected issue for bad.md, got %v", result.Issues)
	}
}

func TestProjectAllRequiresSlugs(t *testing.T) {
	projector := newProjector(t, nil)
	n := node("posts", "a.md", map[string]any{"title": "A", "date": "2021-01-01"}, "a")
	if _, err := projector.ProjectAll(context.Background(), []*content.ContentNode{n}, nil); !errors.Is(err, ErrSlugMissing) {
		t.Fatalf("expected ErrSlugMissing, got %v", err)
	}
}

func TestDigestIsStableAndExcludesBody(t *testing.T) {
	projector := newProjector(t, nil)
	meta := map[string]any{"title": "Same", "date": "2021-01-01", "tags": []any{"a"}}

	first, _, _ := projector.Project(node("posts", "s.md", meta, "same text"), "/s/")
	second, _, _ := projector.Project(node("posts", "s.md", meta, "same text"), "/s/")
	if first.ContentDigest != second.ContentDigest {
		t.Fatalf("expected identical digests, got %s and %s", first.ContentDigest, second.ContentDigest)
	}

	emphasised, _, _ := projector.Project(node("posts", "s.md", meta, "same *text*"), "/s/")
	if emphasised.Body == first.Body {
		t.Fatal("expected rendered bodies to differ")
	}
	if emphasised.ContentDigest != first.ContentDigest {
		t.Fatal("expected body-only markup change to keep the digest")
	}

	renamed, _, _ := projector.Project(node("posts", "s.md", map[string]any{"title": "Other", "date": "2021-01-01"}, "same text"), "/s/")
	if renamed.ContentDigest == first.ContentDigest {
		t.Fatal("expected title change to change the digest")
	}
}

func TestNewProjectorRequiresParser(t *testing.T) {
	if _, err := NewProjector(Config{}, nil, nil); !errors.Is(err, ErrParserRequired) {
		t.Fatalf("expected ErrParserRequired, got %v", err)
	}
}

func newProjector(t *testing.T, parser interfaces.MarkdownParser) *Projector {
	t.Helper()
	if parser == nil {
		parser = markdown.NewGoldmarkParser(interfaces.ParseOptions{})
	}
	p, err := NewProjector(Config{}, parser, nil)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	return p
}

func node(source, rel string, meta map[string]any, body string) *content.ContentNode {
	dir := ""
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		dir = rel[:i]
	}
	return &content.ContentNode{
		ID:                 identity.NodeUUID(source, rel),
		RelativePath:       rel,
		RelativeDirectory:  dir,
		SourceInstanceName: source,
		FrontMatter:        meta,
		RawBody:            []byte(body),
		Checksum:           strings.Repeat("0", 64),
	}
}

type failingParser struct{}

func (failingParser) Parse([]byte) ([]byte, error) {
	return nil, errors.New("parser exploded")
}

func (failingParser) ParseWithOptions([]byte, interfaces.ParseOptions) ([]byte, error) {
	return nil, errors.New("parser exploded")
}
