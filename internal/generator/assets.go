package generator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
)

const (
	defaultCardImageName     = "card"
	defaultFallbackDirectory = "home"
)

// cardExtensions lists the card image formats in lookup order.
var cardExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// AssetsConfig points the generator at the static assets directory.
type AssetsConfig struct {
	// Dir is copied verbatim to the output root. Empty disables asset
	// copying and card lookup.
	Dir string
	// CardImageName is the base name of the per-post card image.
	CardImageName string
	// FallbackDirectory is searched for posts at the source root.
	FallbackDirectory string
}

func (c AssetsConfig) withDefaults() AssetsConfig {
	if strings.TrimSpace(c.CardImageName) == "" {
		c.CardImageName = defaultCardImageName
	}
	if strings.TrimSpace(c.FallbackDirectory) == "" {
		c.FallbackDirectory = defaultFallbackDirectory
	}
	return c
}

// resolveCard returns the site-relative URL of the post's card image. A
// post with no card yields a degraded issue and an empty URL.
func (s *service) resolveCard(post *content.Post, report *diagnostics.Report) string {
	assets := s.cfg.Assets
	if strings.TrimSpace(assets.Dir) == "" {
		return ""
	}
	dir := strings.Trim(post.RelativeDirectory, "/")
	if dir == "" {
		dir = strings.Trim(assets.FallbackDirectory, "/")
	}
	for _, ext := range cardExtensions {
		rel := path.Join(dir, assets.CardImageName+ext)
		info, err := os.Stat(filepath.Join(assets.Dir, filepath.FromSlash(rel)))
		if err == nil && info.Mode().IsRegular() {
			return "/" + rel
		}
	}
	report.Degrade("build", post.SourcePath, diagnostics.CodeCardImageUnresolved,
		"no card image under "+path.Join(dir, assets.CardImageName)+".*, page built without image", nil)
	return ""
}

// copyAssets mirrors the assets directory into the output. A configured
// directory that does not exist is skipped with a warning log.
func (s *service) copyAssets(ctx context.Context, writer artifactWriter) (int, error) {
	dir := strings.TrimSpace(s.cfg.Assets.Dir)
	if dir == "" {
		return 0, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("generator.assets.missing", "dir", dir)
			return 0, nil
		}
		return 0, diagnostics.OutputFailed(dir, err)
	}
	if !info.IsDir() {
		s.logger.Warn("generator.assets.not_directory", "dir", dir)
		return 0, nil
	}
	return writer.CopyTree(ctx, dir)
}
