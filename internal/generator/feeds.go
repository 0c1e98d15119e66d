package generator

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/seo"
)

const (
	defaultFeedPath     = "rss.xml"
	defaultAtomFeedPath = "atom.xml"
)

// FeedConfig controls the syndication documents.
type FeedConfig struct {
	// Path of the RSS document relative to the output root.
	Path string
	// Limit caps the number of entries. Zero keeps every post.
	Limit int
	// Atom also writes an Atom document at AtomPath.
	Atom     bool
	AtomPath string
}

func (c FeedConfig) withDefaults() FeedConfig {
	c.Path = strings.Trim(strings.TrimSpace(c.Path), "/")
	if c.Path == "" {
		c.Path = defaultFeedPath
	}
	c.AtomPath = strings.Trim(strings.TrimSpace(c.AtomPath), "/")
	if c.AtomPath == "" {
		c.AtomPath = defaultAtomFeedPath
	}
	if c.Limit < 0 {
		c.Limit = 0
	}
	return c
}

type feedItem struct {
	Title       string
	Summary     string
	Body        string
	Link        string
	GUID        string
	Categories  []string
	PublishedAt time.Time
}

// buildFeedItems maps sorted posts to feed entries, capped at limit.
func (s *service) buildFeedItems(posts []*content.Post) []feedItem {
	count := len(posts)
	if limit := s.cfg.Feed.Limit; limit > 0 && limit < count {
		count = limit
	}
	items := make([]feedItem, 0, count)
	for _, post := range posts[:count] {
		link := s.canonicalURL(post.Slug)
		items = append(items, feedItem{
			Title:       post.Title,
			Summary:     post.Excerpt,
			Body:        post.Body,
			Link:        link,
			GUID:        link,
			Categories:  post.Tags,
			PublishedAt: post.Date,
		})
	}
	return items
}

// canonicalURL is the public address of a post in feeds and SEO tags.
func (s *service) canonicalURL(slug string) string {
	return seo.AbsoluteURL(s.cfg.Site.BaseURL, joinRoute(s.cfg.CanonicalPrefix, slug))
}

func (s *service) writeFeeds(ctx context.Context, writer artifactWriter, items []feedItem, generatedAt time.Time) (int, error) {
	rss := buildRSSFeed(s.cfg.Site, s.cfg.Language, items, generatedAt)
	if err := writer.WriteFile(ctx, writeFileRequest{
		Path:        s.cfg.Feed.Path,
		Content:     strings.NewReader(rss),
		Category:    categoryFeed,
		ContentType: "application/rss+xml",
	}); err != nil {
		return 0, err
	}
	if !s.cfg.Feed.Atom {
		return 1, nil
	}
	selfLink := seo.AbsoluteURL(s.cfg.Site.BaseURL, s.cfg.Feed.AtomPath)
	atom := buildAtomFeed(s.cfg.Site, s.cfg.Language, selfLink, items, generatedAt)
	if err := writer.WriteFile(ctx, writeFileRequest{
		Path:        s.cfg.Feed.AtomPath,
		Content:     strings.NewReader(atom),
		Category:    categoryFeed,
		ContentType: "application/atom+xml",
	}); err != nil {
		return 1, err
	}
	return 2, nil
}

func buildRSSFeed(site seo.Site, language string, items []feedItem, generatedAt time.Time) string {
	baseLink := baseURLWithFallback(site.BaseURL)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">` + "\n")
	builder.WriteString("  <channel>\n")
	builder.WriteString(fmt.Sprintf("    <title>%s</title>\n", escapeXML(siteTitle(site))))
	builder.WriteString(fmt.Sprintf("    <link>%s</link>\n", escapeXML(baseLink)))
	builder.WriteString(fmt.Sprintf("    <description>%s</description>\n", escapeXML(site.Description)))
	if strings.TrimSpace(language) != "" {
		builder.WriteString(fmt.Sprintf("    <language>%s</language>\n", escapeXML(language)))
	}
	builder.WriteString(fmt.Sprintf("    <lastBuildDate>%s</lastBuildDate>\n", generatedAt.UTC().Format(time.RFC1123Z)))
	for _, item := range items {
		builder.WriteString("    <item>\n")
		builder.WriteString(fmt.Sprintf("      <title>%s</title>\n", escapeXML(item.Title)))
		builder.WriteString(fmt.Sprintf("      <link>%s</link>\n", escapeXML(item.Link)))
		builder.WriteString(fmt.Sprintf(`      <guid isPermaLink="true">%s</guid>`+"\n", escapeXML(item.GUID)))
		builder.WriteString(fmt.Sprintf("      <pubDate>%s</pubDate>\n", item.PublishedAt.UTC().Format(time.RFC1123Z)))
		for _, category := range item.Categories {
			builder.WriteString(fmt.Sprintf("      <category>%s</category>\n", escapeXML(category)))
		}
		if item.Summary != "" {
			builder.WriteString(fmt.Sprintf("      <description>%s</description>\n", escapeXML(item.Summary)))
		}
		builder.WriteString(fmt.Sprintf("      <content:encoded>%s</content:encoded>\n", cdata(item.Body)))
		builder.WriteString("    </item>\n")
	}
	builder.WriteString("  </channel>\n")
	builder.WriteString(`</rss>` + "\n")
	return builder.String()
}

func buildAtomFeed(site seo.Site, language, selfLink string, items []feedItem, generatedAt time.Time) string {
	baseLink := baseURLWithFallback(site.BaseURL)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	if strings.TrimSpace(language) != "" {
		builder.WriteString(fmt.Sprintf(`<feed xmlns="http://www.w3.org/2005/Atom" xml:lang="%s">`+"\n", escapeXMLAttr(language)))
	} else {
		builder.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom">` + "\n")
	}
	builder.WriteString(fmt.Sprintf("  <id>%s</id>\n", escapeXML(selfLink)))
	builder.WriteString(fmt.Sprintf("  <title>%s</title>\n", escapeXML(siteTitle(site))))
	if site.Description != "" {
		builder.WriteString(fmt.Sprintf("  <subtitle>%s</subtitle>\n", escapeXML(site.Description)))
	}
	builder.WriteString(fmt.Sprintf("  <updated>%s</updated>\n", generatedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf(`  <link rel="alternate" href="%s" />`+"\n", escapeXMLAttr(baseLink)))
	builder.WriteString(fmt.Sprintf(`  <link rel="self" href="%s" />`+"\n", escapeXMLAttr(selfLink)))
	for _, item := range items {
		builder.WriteString("  <entry>\n")
		builder.WriteString(fmt.Sprintf("    <id>%s</id>\n", escapeXML(item.GUID)))
		builder.WriteString(fmt.Sprintf("    <title>%s</title>\n", escapeXML(item.Title)))
		builder.WriteString(fmt.Sprintf(`    <link href="%s" />`+"\n", escapeXMLAttr(item.Link)))
		builder.WriteString(fmt.Sprintf("    <updated>%s</updated>\n", item.PublishedAt.UTC().Format(time.RFC3339)))
		builder.WriteString(fmt.Sprintf("    <published>%s</published>\n", item.PublishedAt.UTC().Format(time.RFC3339)))
		for _, category := range item.Categories {
			builder.WriteString(fmt.Sprintf(`    <category term="%s" />`+"\n", escapeXMLAttr(category)))
		}
		if item.Summary != "" {
			builder.WriteString(fmt.Sprintf("    <summary>%s</summary>\n", escapeXML(item.Summary)))
		}
		builder.WriteString(fmt.Sprintf(`    <content type="html">%s</content>`+"\n", escapeXML(item.Body)))
		builder.WriteString("  </entry>\n")
	}
	builder.WriteString(`</feed>` + "\n")
	return builder.String()
}

func siteTitle(site seo.Site) string {
	if title := strings.TrimSpace(site.Title); title != "" {
		return title
	}
	return baseURLWithFallback(site.BaseURL)
}

func baseURLWithFallback(base string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if trimmed == "" {
		return "http://localhost"
	}
	return trimmed
}

// cdata wraps body in a CDATA section, splitting any terminator it contains.
func cdata(body string) string {
	return "<![CDATA[" + strings.ReplaceAll(body, "]]>", "]]]]><![CDATA[>") + "]]>"
}

func escapeXML(value string) string {
	return html.EscapeString(value)
}

func escapeXMLAttr(value string) string {
	return html.EscapeString(value)
}
