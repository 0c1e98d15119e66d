// Package slugs derives the canonical URL slug of a content node from its
// path relative to the source root.
package slugs

import (
	"path"
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
)

const indexName = "index"

// Derive maps a slash separated relative path to its slug. The extension is
// dropped, a trailing index segment collapses into its directory and every
// segment is lowercased. Segments that are not already valid slugs are
// normalized. The result always starts and ends with "/".
//
//	hello-world.md       -> /hello-world/
//	2021/Trip/index.mdx  -> /2021/trip/
//	index.md             -> /
func Derive(relPath string) string {
	clean := path.Clean("/" + strings.ReplaceAll(relPath, "\\", "/"))
	clean = strings.TrimSuffix(clean, path.Ext(clean))

	segments := strings.Split(strings.Trim(clean, "/"), "/")
	if n := len(segments); n > 0 && strings.EqualFold(segments[n-1], indexName) {
		segments = segments[:n-1]
	}

	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment = normalizeSegment(segment); segment != "" {
			out = append(out, segment)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/") + "/"
}

func normalizeSegment(segment string) string {
	lower := strings.ToLower(strings.TrimSpace(segment))
	if lower == "" || slug.IsValid(lower) {
		return lower
	}
	normalized, err := slug.Normalize(lower)
	if err != nil || normalized == "" {
		return lower
	}
	return normalized
}

// DeriveAll returns the slug of every node keyed by node id. Slugs must be
// unique within a source instance; the first duplicate found is returned as
// a fatal collision naming both files. Nodes are visited in path order so
// the reported pair is stable.
func DeriveAll(nodes []*content.ContentNode) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(nodes))
	owners := map[string]map[string]*content.ContentNode{}

	for _, node := range nodes {
		if node == nil {
			continue
		}
		s := Derive(node.RelativePath)

		claimed := owners[node.SourceInstanceName]
		if claimed == nil {
			claimed = map[string]*content.ContentNode{}
			owners[node.SourceInstanceName] = claimed
		}
		if prev, exists := claimed[s]; exists {
			return nil, diagnostics.SlugCollision(s, displayPath(prev), displayPath(node))
		}
		claimed[s] = node
		out[node.ID] = s
	}
	return out, nil
}

func displayPath(node *content.ContentNode) string {
	return node.SourceInstanceName + "/" + node.RelativePath
}
