package posts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errFieldType = errors.New("unsupported value type")

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// parseDate accepts decoded timestamps and the date formats commonly found
// in frontmatter. Dates without a zone are read as UTC.
func parseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("date %q is not in a recognised format", trimmed)
	default:
		return time.Time{}, fmt.Errorf("date: %w %T", errFieldType, value)
	}
}

// stringList reads an optional list field. A missing key yields an empty
// list. A single string is a one element list. Duplicates and blanks are
// dropped, first occurrence order is kept.
func stringList(value any) ([]string, error) {
	var raw []string
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		raw = make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return []string{}, fmt.Errorf("item %d: %w %T", i, errFieldType, item)
			}
			raw = append(raw, s)
		}
	default:
		return []string{}, fmt.Errorf("%w %T", errFieldType, value)
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
