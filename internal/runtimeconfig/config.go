package runtimeconfig

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ErrPostSourceUnknown indicates the post source does not name a configured content source.
var ErrPostSourceUnknown = errors.New("folio config: post source is not a configured content source")

// ErrSourceNameDuplicate indicates two content sources share a name.
var ErrSourceNameDuplicate = errors.New("folio config: content source names must be unique")

// ErrOutputDirUnsafe indicates the output directory equals or contains one of
// the build inputs, which commit and clean would remove.
var ErrOutputDirUnsafe = errors.New("folio config: output directory must not contain build inputs")

var sourceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Config aggregates every setting of a folio build. Fields carry yaml tags so
// the struct doubles as the configuration file schema.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Content   ContentConfig   `yaml:"content"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Generator GeneratorConfig `yaml:"generator"`
	Feed      FeedConfig      `yaml:"feed"`
	Assets    AssetsConfig    `yaml:"assets"`
	Pages     PagesConfig     `yaml:"pages"`
	Templates TemplatesConfig `yaml:"templates"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Watch     WatchConfig     `yaml:"watch"`
}

// SiteConfig is consumed read-only by SEO tags and the feed.
type SiteConfig struct {
	Title                  string `yaml:"title"`
	Description            string `yaml:"description"`
	BaseURL                string `yaml:"base_url"`
	Image                  string `yaml:"image"`
	TwitterUsername        string `yaml:"twitter_username"`
	GoogleSiteVerification string `yaml:"google_site_verification"`
	Language               string `yaml:"language"`
}

// SourceConfig names one content directory tree.
type SourceConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ContentConfig captures discovery and projection behaviour.
type ContentConfig struct {
	Sources     []SourceConfig `yaml:"sources"`
	PostSource  string         `yaml:"post_source"`
	Extensions  []string       `yaml:"extensions"`
	PruneLength int            `yaml:"prune_length"`
	Workers     int            `yaml:"workers"`
}

// MarkdownConfig mirrors interfaces.ParseOptions for runtime configuration.
type MarkdownConfig struct {
	Extensions  []string `yaml:"extensions"`
	HardWraps   bool     `yaml:"hard_wraps"`
	SafeMode    bool     `yaml:"safe_mode"`
	Typographer bool     `yaml:"typographer"`
}

// GeneratorConfig captures behaviour for the static site generator.
type GeneratorConfig struct {
	OutputDir       string `yaml:"output_dir"`
	PostRoutePrefix string `yaml:"post_route_prefix"`
	CanonicalPrefix string `yaml:"canonical_prefix"`
	Incremental     bool   `yaml:"incremental"`
	GenerateSitemap bool   `yaml:"sitemap"`
	GenerateRobots  bool   `yaml:"robots"`
	Workers         int    `yaml:"workers"`
}

// FeedConfig controls the syndication documents.
type FeedConfig struct {
	Path     string `yaml:"path"`
	Limit    int    `yaml:"limit"`
	Atom     bool   `yaml:"atom"`
	AtomPath string `yaml:"atom_path"`
}

// AssetsConfig locates static files and card images.
type AssetsConfig struct {
	Dir               string `yaml:"dir"`
	CardImageName     string `yaml:"card_image_name"`
	FallbackDirectory string `yaml:"fallback_directory"`
}

// PagesConfig points at the markdown sources of standalone pages.
type PagesConfig struct {
	About string `yaml:"about"`
}

// TemplatesConfig selects a theme directory overriding the built-in templates.
type TemplatesConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig selects the digest store used by incremental builds.
type CacheConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig selects and tunes the logger provider.
type LoggingConfig struct {
	Provider string   `yaml:"provider"`
	Level    string   `yaml:"level"`
	Format   string   `yaml:"format"`
	Focus    []string `yaml:"focus"`
}

// MetricsConfig toggles the Prometheus recorder.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns the defaults every loaded file is layered over.
func DefaultConfig() Config {
	return Config{
		Site: SiteConfig{
			Title:    "Folio",
			BaseURL:  "http://localhost:8080",
			Language: "en",
		},
		Content: ContentConfig{
			Sources:     []SourceConfig{{Name: "posts", Path: "content/posts"}},
			PostSource:  "posts",
			Extensions:  []string{".md", ".mdx"},
			PruneLength: 140,
		},
		Markdown: MarkdownConfig{
			Extensions:  []string{"gfm", "linkify", "footnote"},
			Typographer: true,
		},
		Generator: GeneratorConfig{
			OutputDir:       "public",
			PostRoutePrefix: "/post",
			CanonicalPrefix: "",
			GenerateSitemap: true,
			GenerateRobots:  true,
		},
		Feed: FeedConfig{
			Path:     "rss.xml",
			AtomPath: "atom.xml",
		},
		Assets: AssetsConfig{
			Dir:               "static",
			CardImageName:     "card",
			FallbackDirectory: "home",
		},
		Cache: CacheConfig{
			Driver: "file",
			Path:   ".folio/digests.json",
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
}

// Validate performs field and cross-field consistency checks.
func (cfg Config) Validate() error {
	if err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Site),
		validation.Field(&cfg.Content),
		validation.Field(&cfg.Generator),
		validation.Field(&cfg.Feed),
		validation.Field(&cfg.Cache),
		validation.Field(&cfg.Logging),
		validation.Field(&cfg.Watch),
	); err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Content.Sources))
	for _, source := range cfg.Content.Sources {
		name := strings.TrimSpace(source.Name)
		if slices.Contains(names, name) {
			return fmt.Errorf("%w: %s", ErrSourceNameDuplicate, name)
		}
		names = append(names, name)
	}
	if !slices.Contains(names, strings.TrimSpace(cfg.Content.PostSource)) {
		return fmt.Errorf("%w: %s", ErrPostSourceUnknown, cfg.Content.PostSource)
	}
	return cfg.validateOutputDir()
}

// validateOutputDir rejects an output directory that would swallow an input.
func (cfg Config) validateOutputDir() error {
	output, err := filepath.Abs(cfg.Generator.OutputDir)
	if err != nil {
		return fmt.Errorf("folio config: resolve output dir: %w", err)
	}
	if output == filepath.Dir(output) {
		return fmt.Errorf("%w: %s is the filesystem root", ErrOutputDirUnsafe, output)
	}

	inputs := []string{cfg.Assets.Dir, cfg.Templates.Dir, cfg.Pages.About}
	for _, source := range cfg.Content.Sources {
		inputs = append(inputs, source.Path)
	}
	if driver := strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)); driver == "" || driver == "file" {
		inputs = append(inputs, cfg.Cache.Path)
	}
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("folio config: resolve %s: %w", input, err)
		}
		rel, err := filepath.Rel(output, abs)
		if abs == output || (err == nil && filepath.IsLocal(rel)) {
			return fmt.Errorf("%w: %s contains %s", ErrOutputDirUnsafe, output, abs)
		}
	}
	return nil
}

func (s SiteConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.BaseURL, validation.Required, is.URL),
		validation.Field(&s.Image, is.RequestURI.Error("must be a path or URL")),
	)
}

func (s SourceConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.Match(sourceNamePattern)),
		validation.Field(&s.Path, validation.Required),
	)
}

func (c ContentConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Sources, validation.Required),
		validation.Field(&c.PostSource, validation.Required),
		validation.Field(&c.PruneLength, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

func (g GeneratorConfig) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.OutputDir, validation.Required),
		validation.Field(&g.Workers, validation.Min(0)),
	)
}

func (f FeedConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Limit, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.In("", "file", "memory", "sqlite", "sqlite3", "postgres", "postgresql")),
		validation.Field(&c.Path, validation.When(driver == "" || driver == "file", validation.Required)),
		validation.Field(&c.DSN, validation.When(driver != "" && driver != "file" && driver != "memory", validation.Required)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Provider, validation.In("console", "gologger")),
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "warning", "error", "fatal")),
		validation.Field(&l.Format, validation.When(l.Provider == "gologger", validation.In("json", "console", "pretty"))),
	)
}

func (w WatchConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Debounce, validation.Min(time.Duration(0))),
	)
}
