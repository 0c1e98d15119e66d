package templates

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRendererUsesBuiltinTemplates(t *testing.T) {
	r, err := NewRenderer(Config{})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	for _, name := range []string{"base.html", "post.html", "index.html", "about.html"} {
		if !r.HasTemplate(name) {
			t.Fatalf("expected builtin template %s", name)
		}
	}

	var buf bytes.Buffer
	out, err := r.RenderTemplate("post.html", map[string]any{
		"site":  map[string]any{"title": "Blog"},
		"seo":   map[string]any{"title": "Hello | Blog", "html": `<meta name="description" content="x">`},
		"build": map[string]any{"year": 2021},
		"page": map[string]any{
			"title":        "Hello <b>",
			"body":         "<p>rendered</p>",
			"date_display": "May 06, 2021",
			"tags":         []string{"go"},
			"card":         "/2021/hello/card.png",
		},
	}, &buf)
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != buf.String() {
		t.Fatal("expected output to be streamed to writer")
	}
	for _, want := range []string{
		"<title>Hello | Blog</title>",
		`<meta name="description" content="x">`,
		"<h1>Hello &lt;b&gt;</h1>",
		"<p>rendered</p>",
		"<li>go</li>",
		`src="/2021/hello/card.png"`,
		"May 06, 2021",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRendererThemeOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "about.html"), []byte("custom {{ page.title }}"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	r, err := NewRenderer(Config{Dir: dir})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	before := r.Fingerprint()

	out, err := r.RenderTemplate("about.html", map[string]any{"page": map[string]any{"title": "Me"}})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "custom Me" {
		t.Fatalf("expected override output, got %q", out)
	}

	if err := os.WriteFile(filepath.Join(dir, "about.html"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("rewrite override: %v", err)
	}
	if r.Fingerprint() == before {
		t.Fatal("expected fingerprint to change with template source")
	}
}

func TestRendererMissingTemplate(t *testing.T) {
	r, err := NewRenderer(Config{})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.RenderTemplate("missing.html", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestNewRendererRejectsMissingDir(t *testing.T) {
	if _, err := NewRenderer(Config{Dir: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatal("expected error for missing theme directory")
	}
}
