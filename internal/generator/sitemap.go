package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type sitemapEntry struct {
	Location string
	LastMod  time.Time
}

func buildSitemap(baseURL string, pages []plannedPage, fallback time.Time) string {
	base := baseURLWithFallback(baseURL)

	entries := make([]sitemapEntry, 0, len(pages))
	seen := map[string]struct{}{}
	for _, page := range pages {
		route := strings.TrimSpace(page.Page.RoutePath)
		if route == "" {
			route = "/"
		}
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
		location := base + route
		if _, ok := seen[location]; ok {
			continue
		}
		seen[location] = struct{}{}
		lastMod := page.LastModified
		if lastMod.IsZero() {
			lastMod = fallback
		}
		entries = append(entries, sitemapEntry{Location: location, LastMod: lastMod})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Location < entries[j].Location
	})

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, entry := range entries {
		builder.WriteString("  <url>\n")
		builder.WriteString(fmt.Sprintf("    <loc>%s</loc>\n", escapeXML(entry.Location)))
		if !entry.LastMod.IsZero() {
			builder.WriteString(fmt.Sprintf("    <lastmod>%s</lastmod>\n", entry.LastMod.UTC().Format(time.RFC3339)))
		}
		builder.WriteString("  </url>\n")
	}
	builder.WriteString(`</urlset>` + "\n")
	return builder.String()
}

func buildRobots(baseURL string, includeSitemap bool) string {
	var builder strings.Builder
	builder.WriteString("User-agent: *\n")
	builder.WriteString("Allow: /\n")
	if includeSitemap {
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("Sitemap: %s/sitemap.xml\n", baseURLWithFallback(baseURL)))
	}
	return builder.String()
}

func (s *service) writeSitemapAndRobots(ctx context.Context, writer artifactWriter, plan *buildPlan) error {
	if s.cfg.GenerateSitemap {
		body := buildSitemap(s.cfg.Site.BaseURL, plan.Pages, plan.GeneratedAt)
		if err := writer.WriteFile(ctx, writeFileRequest{
			Path:        "sitemap.xml",
			Content:     strings.NewReader(body),
			Category:    categorySitemap,
			ContentType: "application/xml",
		}); err != nil {
			return err
		}
	}
	if s.cfg.GenerateRobots {
		body := buildRobots(s.cfg.Site.BaseURL, s.cfg.GenerateSitemap)
		if err := writer.WriteFile(ctx, writeFileRequest{
			Path:        "robots.txt",
			Content:     strings.NewReader(body),
			Category:    categoryRobots,
			ContentType: "text/plain; charset=utf-8",
		}); err != nil {
			return err
		}
	}
	return nil
}
