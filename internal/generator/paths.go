package generator

import (
	"path"
	"strings"
)

// buildOutputPath maps a route to the file that serves it, relative to the
// output root. Every route is a directory with an index.html.
func buildOutputPath(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		route = "/"
	}
	clean := strings.Trim(route, " \t\r\n/")
	if clean == "" {
		return "index.html"
	}
	return path.Join(clean, "index.html")
}

// joinRoute prefixes slug with prefix, keeping exactly one slash between
// them and the trailing slash of the slug.
func joinRoute(prefix, slug string) string {
	prefix = "/" + strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	if slug == "" {
		slug = "/"
	}
	if !strings.HasPrefix(slug, "/") {
		slug = "/" + slug
	}
	return prefix + slug
}
