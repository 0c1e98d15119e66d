package folio

import "github.com/goliatone/go-folio/internal/runtimeconfig"

var (
	ErrPostSourceUnknown   = runtimeconfig.ErrPostSourceUnknown
	ErrSourceNameDuplicate = runtimeconfig.ErrSourceNameDuplicate
)

type (
	Config          = runtimeconfig.Config
	SiteConfig      = runtimeconfig.SiteConfig
	SourceConfig    = runtimeconfig.SourceConfig
	ContentConfig   = runtimeconfig.ContentConfig
	MarkdownConfig  = runtimeconfig.MarkdownConfig
	GeneratorConfig = runtimeconfig.GeneratorConfig
	FeedConfig      = runtimeconfig.FeedConfig
	AssetsConfig    = runtimeconfig.AssetsConfig
	PagesConfig     = runtimeconfig.PagesConfig
	TemplatesConfig = runtimeconfig.TemplatesConfig
	CacheConfig     = runtimeconfig.CacheConfig
	LoggingConfig   = runtimeconfig.LoggingConfig
	MetricsConfig   = runtimeconfig.MetricsConfig
	WatchConfig     = runtimeconfig.WatchConfig
	LoadOptions     = runtimeconfig.LoadOptions
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig layers a YAML file, a dotenv file and FOLIO_* environment
// variables over DefaultConfig.
func LoadConfig(opts LoadOptions) (Config, error) {
	return runtimeconfig.Load(opts)
}
