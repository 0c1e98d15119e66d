package markdown

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"
)

// ParseFrontMatter splits source into its frontmatter map and markdown body.
// YAML, TOML and JSON headers are accepted. A file without a header yields an
// empty map and the whole source as body.
func ParseFrontMatter(source []byte) (map[string]any, []byte, error) {
	meta := map[string]any{}

	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return nil, nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	normalized, _ := normalizeValue(meta).(map[string]any)
	if normalized == nil {
		normalized = map[string]any{}
	}
	return normalized, body, nil
}

// normalizeValue converts the map[any]any values produced by the YAML
// decoder into map[string]any so the result can be JSON encoded.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = normalizeValue(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = normalizeValue(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = normalizeValue(v)
		}
		return out
	default:
		return value
	}
}
