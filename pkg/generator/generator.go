// Package generator exposes the folio static site generator for hosts that
// assemble the pipeline themselves, for example with their own content
// scanner or template renderer. Most callers should use the root folio
// package instead.
package generator

import internal "github.com/goliatone/go-folio/internal/generator"

type (
	Service        = internal.Service
	Config         = internal.Config
	FeedConfig     = internal.FeedConfig
	AssetsConfig   = internal.AssetsConfig
	BuildOptions   = internal.BuildOptions
	BuildResult    = internal.BuildResult
	RenderedPage   = internal.RenderedPage
	Dependencies   = internal.Dependencies
	ContentScanner = internal.ContentScanner
	PostProjector  = internal.PostProjector
)

// NewService wires a static site generator with the supplied configuration and dependencies.
func NewService(cfg Config, deps Dependencies) Service {
	return internal.NewService(cfg, deps)
}
