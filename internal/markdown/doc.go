// Package markdown wraps the markdown tooling used by the pipeline:
// frontmatter extraction, goldmark HTML rendering and plain text extraction
// for excerpts.
package markdown
