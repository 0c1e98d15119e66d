package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/identity"
)

func TestScanDiscoversMarkdownFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/hello.md", "---\ntitle: Hello\ndate: 2021-01-01\n---\nHi\n")
	writeFile(t, root, "posts/2021/deep/index.mdx", "---\ntitle: Deep\n---\nDeep\n")
	writeFile(t, root, "posts/notes.txt", "ignored")
	writeFile(t, root, "posts/.drafts/secret.md", "---\ntitle: Secret\n---\n")
	writeFile(t, root, "pages/about.md", "---\ntitle: About\n---\n")

	s := New(Config{
		Sources: []Source{
			{Name: "posts", Path: filepath.Join(root, "posts")},
			{Name: "pages", Path: filepath.Join(root, "pages")},
		},
		Workers: 2,
	}, nil)

	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", result.Issues)
	}
	if result.Arena.Len() != 3 {
		t.Fatalf("expected 3 nodes, got %d", result.Arena.Len())
	}

	node, ok := result.Arena.Get(identity.NodeUUID("posts", "2021/deep/index.mdx"))
	if !ok {
		t.Fatal("expected nested mdx node")
	}
	if node.RelativeDirectory != "2021/deep" {
		t.Fatalf("unexpected relative directory %q", node.RelativeDirectory)
	}
	if node.FrontMatter["title"] != "Deep" {
		t.Fatalf("unexpected frontmatter %v", node.FrontMatter)
	}
	if string(node.RawBody) != "Deep\n" {
		t.Fatalf("unexpected body %q", node.RawBody)
	}
	if len(node.Checksum) != 64 {
		t.Fatalf("expected sha256 hex checksum, got %q", node.Checksum)
	}

	hello, ok := result.Arena.Get(identity.NodeUUID("posts", "hello.md"))
	if !ok || hello.RelativeDirectory != "" {
		t.Fatalf("expected root level node with empty directory, got %+v", hello)
	}
	if len(result.Arena.BySource("pages")) != 1 {
		t.Fatal("expected pages source node")
	}
}

func TestScanSkipsUnreadableFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.md", "---\ntitle: Good\n---\nok\n")
	writeFile(t, root, "bad.md", "---\ntitle: [broken\n---\nbody\n")

	result, err := New(Config{Sources: []Source{{Name: "posts", Path: root}}}, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Arena.Len() != 1 {
		t.Fatalf("expected the good file to survive, got %d nodes", result.Arena.Len())
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.Severity != diagnostics.SeverityWarning || issue.Path != "posts/bad.md" || issue.Code != diagnostics.CodeFrontMatterUnreadable {
		t.Fatalf("unexpected issue %+v", issue)
	}
}

func TestScanRequiresSources(t *testing.T) {
	_, err := New(Config{}, nil).Scan(context.Background())
	if !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}

	_, err = New(Config{Sources: []Source{{Name: "posts", Path: filepath.Join(t.TempDir(), "missing")}}}, nil).Scan(context.Background())
	if !errors.Is(err, ErrSourceRoot) {
		t.Fatalf("expected ErrSourceRoot, got %v", err)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Config{Sources: []Source{{Name: "posts", Path: root}}}, nil).Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.markdown", "a")
	writeFile(t, root, "b.md", "b")

	result, err := New(Config{Sources: []Source{{Name: "posts", Path: root}}, Extensions: []string{"markdown"}}, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Arena.Len() != 1 {
		t.Fatalf("expected only .markdown files, got %d", result.Arena.Len())
	}
}

func writeFile(tb testing.TB, root, rel, body string) {
	tb.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		tb.Fatalf("write %s: %v", rel, err)
	}
}
