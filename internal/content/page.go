package content

import "github.com/google/uuid"

// Page describes one routable output document. The context is captured at
// construction time and every read returns a copy.
type Page struct {
	RoutePath   string
	TemplateRef string
	PostID      uuid.UUID
	context     map[string]any
}

// NewPage snapshots ctx into a new page.
func NewPage(route, template string, postID uuid.UUID, ctx map[string]any) Page {
	return Page{
		RoutePath:   route,
		TemplateRef: template,
		PostID:      postID,
		context:     cloneMap(ctx),
	}
}

// Context returns a copy of the page context.
func (p Page) Context() map[string]any {
	return cloneMap(p.context)
}

// Value returns a copy of a single context entry.
func (p Page) Value(key string) (any, bool) {
	v, ok := p.context[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []map[string]any:
		out := make([]map[string]any, len(typed))
		for i := range typed {
			out[i] = cloneMap(typed[i])
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = cloneValue(typed[i])
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}
