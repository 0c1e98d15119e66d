package interfaces

import "io"

// TemplateRenderer renders named page templates. When out writers are given
// the rendered document is also streamed to each of them.
type TemplateRenderer interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	HasTemplate(name string) bool
}
