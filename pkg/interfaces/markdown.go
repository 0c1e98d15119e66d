package interfaces

// MarkdownParser converts markdown source into HTML.
type MarkdownParser interface {
	// Parse renders markdown with the parser defaults.
	Parse(markdown []byte) ([]byte, error)
	// ParseWithOptions renders markdown with per-call overrides.
	ParseWithOptions(markdown []byte, opts ParseOptions) ([]byte, error)
}

// ParseOptions toggles goldmark behaviour. Field names stay readable so the
// struct can be embedded in YAML configuration.
type ParseOptions struct {
	Extensions  []string `yaml:"extensions" json:"extensions"`
	HardWraps   bool     `yaml:"hard_wraps" json:"hard_wraps"`
	SafeMode    bool     `yaml:"safe_mode" json:"safe_mode"`
	Typographer bool     `yaml:"typographer" json:"typographer"`
}
