// Package seo builds the document metadata emitted in page heads: title,
// description, canonical link, OpenGraph and Twitter card tags.
package seo

import (
	"html"
	"strings"
)

// Site holds the site-wide values SEO tags fall back to.
type Site struct {
	Title                  string
	Description            string
	BaseURL                string
	Image                  string
	TwitterUsername        string
	GoogleSiteVerification string
}

// Input describes the page being tagged. Empty fields fall back to Site.
type Input struct {
	Title       string
	Description string
	Path        string
	Image       string
	Article     bool
	Keywords    []string
}

// Tag is a single head element. Exactly one of Name, Property or Rel is set.
type Tag struct {
	Name     string
	Property string
	Rel      string
	Content  string
}

// Meta is the resolved metadata for one page.
type Meta struct {
	Title       string
	Description string
	URL         string
	Image       string
	Type        string
	Tags        []Tag
}

// Build resolves the metadata for in against site.
func Build(site Site, in Input) Meta {
	title := firstNonEmpty(in.Title, site.Title)
	if in.Title != "" && site.Title != "" && in.Title != site.Title {
		title = in.Title + " | " + site.Title
	}
	description := firstNonEmpty(in.Description, site.Description)
	url := AbsoluteURL(site.BaseURL, in.Path)
	image := ""
	if src := firstNonEmpty(in.Image, site.Image); src != "" {
		image = AbsoluteURL(site.BaseURL, src)
	}

	kind := "website"
	if in.Article {
		kind = "article"
	}

	meta := Meta{Title: title, Description: description, URL: url, Image: image, Type: kind}

	add := func(tag Tag) {
		if tag.Content != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	}
	add(Tag{Name: "description", Content: description})
	add(Tag{Name: "image", Content: image})
	if len(in.Keywords) > 0 {
		add(Tag{Name: "keywords", Content: strings.Join(in.Keywords, ", ")})
	}
	add(Tag{Rel: "canonical", Content: url})
	add(Tag{Property: "og:url", Content: url})
	add(Tag{Property: "og:type", Content: kind})
	add(Tag{Property: "og:title", Content: title})
	add(Tag{Property: "og:description", Content: description})
	add(Tag{Property: "og:image", Content: image})
	add(Tag{Name: "twitter:card", Content: "summary_large_image"})
	if handle := strings.TrimSpace(site.TwitterUsername); handle != "" {
		if !strings.HasPrefix(handle, "@") {
			handle = "@" + handle
		}
		add(Tag{Name: "twitter:creator", Content: handle})
	}
	add(Tag{Name: "twitter:title", Content: title})
	add(Tag{Name: "twitter:description", Content: description})
	add(Tag{Name: "twitter:image", Content: image})
	add(Tag{Name: "google-site-verification", Content: site.GoogleSiteVerification})

	return meta
}

// HTML renders the tags as escaped head markup, one element per line.
func (m Meta) HTML() string {
	var b strings.Builder
	for _, tag := range m.Tags {
		switch {
		case tag.Rel != "":
			b.WriteString(`<link rel="` + html.EscapeString(tag.Rel) + `" href="` + html.EscapeString(tag.Content) + `">`)
		case tag.Property != "":
			b.WriteString(`<meta property="` + html.EscapeString(tag.Property) + `" content="` + html.EscapeString(tag.Content) + `">`)
		default:
			b.WriteString(`<meta name="` + html.EscapeString(tag.Name) + `" content="` + html.EscapeString(tag.Content) + `">`)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Map exposes the metadata to templates.
func (m Meta) Map() map[string]any {
	return map[string]any{
		"title":       m.Title,
		"description": m.Description,
		"url":         m.URL,
		"image":       m.Image,
		"type":        m.Type,
		"html":        m.HTML(),
	}
}

// AbsoluteURL joins base and p with exactly one slash. Absolute URLs in p
// are returned unchanged.
func AbsoluteURL(base, p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if p == "" {
		return base + "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
