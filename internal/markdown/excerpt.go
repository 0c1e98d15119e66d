package markdown

import (
	"strings"
	"unicode/utf8"
)

// DefaultPruneLength is the excerpt length used when none is configured.
const DefaultPruneLength = 140

// Excerpt shortens plain text to at most pruneLength runes, cutting at a
// word boundary. A first word longer than the limit is cut mid-word. A
// pruneLength of zero or less selects DefaultPruneLength.
func Excerpt(plain string, pruneLength int) string {
	if pruneLength <= 0 {
		pruneLength = DefaultPruneLength
	}

	words := strings.Fields(plain)
	var b strings.Builder
	count := 0
	for _, word := range words {
		n := utf8.RuneCountInString(word)
		if count > 0 {
			n++
		}
		if count+n > pruneLength {
			break
		}
		if count > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		count += n
	}

	if count == 0 && len(words) > 0 {
		runes := []rune(words[0])
		return string(runes[:min(pruneLength, len(runes))])
	}
	return b.String()
}
