package content

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestArenaRejectsDuplicateIDs(t *testing.T) {
	arena := NewArena()
	id := uuid.New()

	if !arena.Add(&ContentNode{ID: id, RelativePath: "a.md"}) {
		t.Fatal("expected first add to succeed")
	}
	if arena.Add(&ContentNode{ID: id, RelativePath: "b.md"}) {
		t.Fatal("expected duplicate add to be rejected")
	}
	node, ok := arena.Get(id)
	if !ok || node.RelativePath != "a.md" {
		t.Fatalf("expected original node to remain, got %+v", node)
	}
}

func TestArenaNodesAreOrdered(t *testing.T) {
	arena := NewArena()
	arena.Add(&ContentNode{ID: uuid.New(), SourceInstanceName: "posts", RelativePath: "z.md"})
	arena.Add(&ContentNode{ID: uuid.New(), SourceInstanceName: "pages", RelativePath: "about.md"})
	arena.Add(&ContentNode{ID: uuid.New(), SourceInstanceName: "posts", RelativePath: "a/index.md"})

	nodes := arena.Nodes()
	got := []string{}
	for _, n := range nodes {
		got = append(got, n.SourceInstanceName+":"+n.RelativePath)
	}
	want := []string{"pages:about.md", "posts:a/index.md", "posts:z.md"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: want %s, got %s", i, want[i], got[i])
		}
	}

	if posts := arena.BySource("posts"); len(posts) != 2 {
		t.Fatalf("expected 2 post nodes, got %d", len(posts))
	}
}

func TestSortPostsByDateThenTitleDescending(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2021, 1, d, 0, 0, 0, 0, time.UTC) }
	posts := []*Post{
		{Title: "Alpha", Date: day(1), Slug: "/alpha/"},
		{Title: "Beta", Date: day(2), Slug: "/beta/"},
		{Title: "Gamma", Date: day(2), Slug: "/gamma/"},
		{Title: "Gamma", Date: day(2), Slug: "/gamma-2/"},
	}

	SortPosts(posts)

	want := []string{"/gamma-2/", "/gamma/", "/beta/", "/alpha/"}
	for i, slug := range want {
		if posts[i].Slug != slug {
			t.Fatalf("position %d: want %s, got %s", i, slug, posts[i].Slug)
		}
	}
}

func TestPostExcerptWithLength(t *testing.T) {
	post := &Post{PlainText: "one two three four"}
	if got := post.ExcerptWithLength(9); got != "one two" {
		t.Fatalf("unexpected excerpt %q", got)
	}
	if got := post.Summary(); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	post.Description = "custom"
	if got := post.Summary(); got != "custom" {
		t.Fatalf("expected description summary, got %q", got)
	}
}

func TestPageContextIsSnapshot(t *testing.T) {
	tags := []string{"go"}
	ctx := map[string]any{"title": "Hello", "tags": tags, "seo": map[string]any{"type": "article"}}

	page := NewPage("/post/hello/", "post.html", uuid.Nil, ctx)

	tags[0] = "mutated"
	ctx["title"] = "Changed"

	got := page.Context()
	if got["title"] != "Hello" {
		t.Fatalf("expected snapshot title, got %v", got["title"])
	}
	if got["tags"].([]string)[0] != "go" {
		t.Fatalf("expected snapshot tags, got %v", got["tags"])
	}

	got["seo"].(map[string]any)["type"] = "website"
	seo, _ := page.Value("seo")
	if seo.(map[string]any)["type"] != "article" {
		t.Fatal("expected reads to return copies")
	}
}
