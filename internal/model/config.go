package model

// Config holds all runtime settings. It is marshaled to YAML by
// `quizlint config show|init` and filled from viper by the CLI.
type Config struct {
	Rules      string           `yaml:"rules" mapstructure:"rules"` // Path to a rules YAML; empty uses the built-in table
	Thresholds Thresholds       `yaml:"thresholds" mapstructure:"thresholds"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Workers    int              `yaml:"workers" mapstructure:"workers"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Advisor    AdvisorConfig    `yaml:"advisor" mapstructure:"advisor"`
	History    HistoryConfig    `yaml:"history" mapstructure:"history"`
}

// Thresholds are the duplicate pipeline cutoffs, all inclusive
type Thresholds struct {
	Keyword      float64 `yaml:"keyword" json:"keyword" mapstructure:"keyword"`
	EditDistance float64 `yaml:"edit_distance" json:"edit_distance" mapstructure:"edit_distance"`
	Opposite     float64 `yaml:"opposite_answer" json:"opposite_answer" mapstructure:"opposite_answer"`
}

// QualityConfig holds statement length bounds in characters
type QualityConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
}

// ValidationConfig controls the category validator
type ValidationConfig struct {
	AutoFix      bool `yaml:"auto_fix" mapstructure:"auto_fix"`
	DropExcluded bool `yaml:"drop_excluded" mapstructure:"drop_excluded"` // Remove out-of-scope records from the final corpus
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Markdown bool `yaml:"markdown" mapstructure:"markdown"`
	Verbose  bool `yaml:"verbose" mapstructure:"verbose"`
	Snippet  int  `yaml:"snippet" mapstructure:"snippet"` // Statement snippet length in reports
}

// AdvisorConfig configures the optional LLM category advisor
type AdvisorConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"-" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	MaxRecords        int     `yaml:"max_records" mapstructure:"max_records"`
	CacheDir          string  `yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
}

// HistoryConfig configures the SQLite run ledger
type HistoryConfig struct {
	Path string `yaml:"path,omitempty" mapstructure:"path"` // Empty disables history
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Thresholds: Thresholds{
			Keyword:      0.80,
			EditDistance: 0.85,
			Opposite:     0.85,
		},
		Quality: QualityConfig{
			MinLength: 15,
			MaxLength: 120,
		},
		Validation: ValidationConfig{
			AutoFix:      true,
			DropExcluded: true,
		},
		Workers: 1,
		Output: OutputConfig{
			Markdown: true,
			Snippet:  60,
		},
		Advisor: AdvisorConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Timeout:           30,
			RequestsPerSecond: 2,
			Burst:             2,
			MaxRecords:        50,
		},
	}
}
