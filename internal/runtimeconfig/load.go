package runtimeconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FOLIO_"

// LoadOptions locates the configuration inputs. Every field is optional.
type LoadOptions struct {
	// Path is the YAML configuration file.
	Path string
	// EnvFile is a dotenv file whose values apply when the process
	// environment does not set the same key.
	EnvFile string
	// Lookup reads the process environment. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Load layers the configuration file and environment overrides over
// DefaultConfig, resolves relative paths against the configuration file
// directory and validates the result.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()
	baseDir := ""

	if path := strings.TrimSpace(opts.Path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("folio config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("folio config: parse %s: %w", path, err)
		}
		baseDir = filepath.Dir(path)
	}

	env, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return Config{}, err
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}
		value, ok := env[key]
		return value, ok
	}); err != nil {
		return Config{}, err
	}

	cfg.normalize()
	cfg.resolvePaths(baseDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("folio config: %w", err)
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("folio config: read env file %s: %w", path, err)
	}
	return values, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, target *string) {
		if value, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	str("BASE_URL", &cfg.Site.BaseURL)
	str("OUTPUT_DIR", &cfg.Generator.OutputDir)
	str("TEMPLATES_DIR", &cfg.Templates.Dir)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_PROVIDER", &cfg.Logging.Provider)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("CACHE_DRIVER", &cfg.Cache.Driver)
	str("CACHE_PATH", &cfg.Cache.Path)
	str("CACHE_DSN", &cfg.Cache.DSN)
	str("METRICS_TEXTFILE", &cfg.Metrics.Textfile)

	if value, ok := lookup(EnvPrefix + "INCREMENTAL"); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("folio config: %sINCREMENTAL: %w", EnvPrefix, err)
		}
		cfg.Generator.Incremental = parsed
	}
	if cfg.Metrics.Textfile != "" {
		cfg.Metrics.Enabled = true
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.Logging.Provider = strings.ToLower(strings.TrimSpace(cfg.Logging.Provider))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Cache.Driver = strings.ToLower(strings.TrimSpace(cfg.Cache.Driver))
	cfg.Content.PostSource = strings.TrimSpace(cfg.Content.PostSource)
	for i := range cfg.Content.Sources {
		cfg.Content.Sources[i].Name = strings.TrimSpace(cfg.Content.Sources[i].Name)
	}
}

// resolvePaths anchors relative filesystem paths at baseDir.
func (cfg *Config) resolvePaths(baseDir string) {
	if baseDir == "" || baseDir == "." {
		return
	}
	resolve := func(p *string) {
		if *p == "" || filepath.IsAbs(*p) {
			return
		}
		*p = filepath.Join(baseDir, *p)
	}
	for i := range cfg.Content.Sources {
		resolve(&cfg.Content.Sources[i].Path)
	}
	resolve(&cfg.Generator.OutputDir)
	resolve(&cfg.Assets.Dir)
	resolve(&cfg.Pages.About)
	resolve(&cfg.Templates.Dir)
	resolve(&cfg.Metrics.Textfile)
	if cfg.Cache.Driver == "" || cfg.Cache.Driver == "file" {
		resolve(&cfg.Cache.Path)
	}
}
