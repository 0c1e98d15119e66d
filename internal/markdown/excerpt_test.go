package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlainTextStripsMarkup(t *testing.T) {
	_, body, err := ParseFrontMatter(readFixture(t, "testdata/post.md"))
	if err != nil {
		t.Fatalf("ParseFrontMatter: %v", err)
	}

	got := PlainText(body)
	want := "Testing with Go Go ships a test runner in the standard toolchain, and go test runs it. Read more at https://go.dev/doc. first item second item"
	if got != want {
		t.Fatalf("unexpected plain text\nwant: %s\ngot:  %s", want, got)
	}
}

func TestPlainTextKeepsLinkLabels(t *testing.T) {
	got := PlainText([]byte("See [the docs](https://example.com) and ![a chart](c.png)."))
	if got != "See the docs and a chart." {
		t.Fatalf("unexpected plain text %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("word ", 60)

	cases := []struct {
		name  string
		plain string
		limit int
		want  string
	}{
		{name: "short text unchanged", plain: "short text", limit: 140, want: "short text"},
		{name: "cut at word boundary", plain: "alpha beta gamma", limit: 12, want: "alpha beta"},
		{name: "exact fit", plain: "alpha beta", limit: 10, want: "alpha beta"},
		{name: "long first word", plain: "supercalifragilistic word", limit: 5, want: "super"},
		{name: "empty", plain: "", limit: 10, want: ""},
		{name: "multibyte", plain: "héllo wörld again", limit: 11, want: "héllo wörld"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Excerpt(tc.plain, tc.limit); got != tc.want {
				t.Fatalf("Excerpt(%q, %d) = %q, want %q", tc.plain, tc.limit, got, tc.want)
			}
		})
	}

	got := Excerpt(long, 0)
	if utf8.RuneCountInString(got) > DefaultPruneLength {
		t.Fatalf("expected default prune length, got %d runes", utf8.RuneCountInString(got))
	}
	if !strings.HasPrefix(long, got) || long[len(got)] != ' ' {
		t.Fatalf("expected excerpt to end at a word boundary, got %q", got)
	}
}

func TestExcerptOfRenderedMarkdown(t *testing.T) {
	body := "Hello **world**, this is a test of excerpt truncation logic that runs well past one hundred forty characters total length for the check to trigger"
	plain := PlainText([]byte(body))
	got := Excerpt(plain, DefaultPruneLength)

	want := "Hello world, this is a test of excerpt truncation logic that runs well past one hundred forty characters total length for the check to"
	if got != want {
		t.Fatalf("unexpected excerpt\nwant: %s\ngot:  %s", want, got)
	}
	if utf8.RuneCountInString(got) > DefaultPruneLength {
		t.Fatalf("expected at most %d runes, got %d", DefaultPruneLength, utf8.RuneCountInString(got))
	}
	if strings.Contains(got, "**") {
		t.Fatalf("expected emphasis markers stripped, got %q", got)
	}
	if !strings.HasPrefix(plain, got+" ") {
		t.Fatalf("expected excerpt to end at a word boundary of %q, got %q", plain, got)
	}
}
