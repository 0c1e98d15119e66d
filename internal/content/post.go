package content

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-folio/internal/markdown"
)

// Post is the typed projection of a ContentNode from the post source.
type Post struct {
	ID                uuid.UUID `json:"id"`
	ParentID          uuid.UUID `json:"parent_id"`
	Title             string    `json:"title"`
	Date              time.Time `json:"date"`
	Tags              []string  `json:"tags"`
	Keywords          []string  `json:"keywords"`
	Slug              string    `json:"slug"`
	Description       string    `json:"description,omitempty"`
	Excerpt           string    `json:"excerpt"`
	Body              string    `json:"body"`
	ContentDigest     string    `json:"content_digest"`
	SourceChecksum    string    `json:"source_checksum"`
	SourcePath        string    `json:"source_path"`
	RelativeDirectory string    `json:"relative_directory"`

	// PlainText is the markup-free body used to compute excerpts.
	PlainText string `json:"-"`
}

// ExcerptWithLength recomputes the excerpt for a caller-chosen prune length.
func (p *Post) ExcerptWithLength(pruneLength int) string {
	if p == nil {
		return ""
	}
	return markdown.Excerpt(p.PlainText, pruneLength)
}

// Summary returns the description when set, otherwise the excerpt.
func (p *Post) Summary() string {
	if p == nil {
		return ""
	}
	if p.Description != "" {
		return p.Description
	}
	return p.Excerpt
}

// ComparePosts orders posts newest first, then by title descending. Slug
// ascending breaks remaining ties.
func ComparePosts(a, b *Post) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Title, a.Title); c != 0 {
		return c
	}
	return cmp.Compare(a.Slug, b.Slug)
}

// SortPosts sorts posts in place using ComparePosts.
func SortPosts(posts []*Post) {
	slices.SortStableFunc(posts, ComparePosts)
}
