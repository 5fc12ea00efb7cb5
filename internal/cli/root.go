package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/quizlint/internal/model"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "quizlint",
	Short: "quizlint - duplicate, category and quality gate for true/false question corpora",
	Long: `quizlint filters a corpus of true/false exam statements before release.

It finds near-duplicate and contradictory statements, removes the weaker
record of each pair, checks every record against a closed category set,
and scores statement wording against a lint rule table.

Quality scores are advisory. Only duplicate resolution and out-of-scope
references remove records.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of quizlint.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quizlint %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.quizlint/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Pipeline flags shared by every command
	pf.String("rules", "", "rules YAML (default: built-in table)")
	pf.Int("workers", 1, "workers for the pairwise duplicate passes")
	pf.Float64("keyword-threshold", 0.80, "keyword (Jaccard) candidate threshold")
	pf.Float64("edit-threshold", 0.85, "edit-distance confirmation threshold")
	pf.Float64("opposite-threshold", 0.85, "opposite-answer similarity threshold")
	pf.String("history", "", "SQLite run ledger path (disabled when empty)")
	pf.Bool("advisor", false, "ask an LLM for categories of records left in manual review")
	pf.String("advisor-provider", "openai", "advisor provider (openai, ollama)")
	pf.String("advisor-model", "gpt-4o-mini", "advisor model name")
	pf.Bool("no-md", false, "skip Markdown reports")

	// Bind flags to viper
	for key, flag := range flagKeys {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// flagKeys maps config keys to the flags that override them
var flagKeys = map[string]string{
	"verbose":                    "verbose",
	"rules":                      "rules",
	"workers":                    "workers",
	"thresholds.keyword":         "keyword-threshold",
	"thresholds.edit_distance":   "edit-threshold",
	"thresholds.opposite_answer": "opposite-threshold",
	"history.path":               "history",
	"advisor.enabled":            "advisor",
	"advisor.provider":           "advisor-provider",
	"advisor.model":              "advisor-model",
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// .env carries API keys; a missing file is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".quizlint"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match QUIZLINT_*
	viper.SetEnvPrefix("QUIZLINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(model.DefaultConfig())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env variables reach Unmarshal
func setDefaults(d *model.Config) {
	viper.SetDefault("rules", d.Rules)
	viper.SetDefault("workers", d.Workers)
	viper.SetDefault("thresholds.keyword", d.Thresholds.Keyword)
	viper.SetDefault("thresholds.edit_distance", d.Thresholds.EditDistance)
	viper.SetDefault("thresholds.opposite_answer", d.Thresholds.Opposite)
	viper.SetDefault("quality.min_length", d.Quality.MinLength)
	viper.SetDefault("quality.max_length", d.Quality.MaxLength)
	viper.SetDefault("validation.auto_fix", d.Validation.AutoFix)
	viper.SetDefault("validation.drop_excluded", d.Validation.DropExcluded)
	viper.SetDefault("output.markdown", d.Output.Markdown)
	viper.SetDefault("output.verbose", d.Output.Verbose)
	viper.SetDefault("output.snippet", d.Output.Snippet)
	viper.SetDefault("advisor.enabled", d.Advisor.Enabled)
	viper.SetDefault("advisor.provider", d.Advisor.Provider)
	viper.SetDefault("advisor.model", d.Advisor.Model)
	viper.SetDefault("advisor.api_key", d.Advisor.APIKey)
	viper.SetDefault("advisor.base_url", d.Advisor.BaseURL)
	viper.SetDefault("advisor.timeout", d.Advisor.Timeout)
	viper.SetDefault("advisor.requests_per_second", d.Advisor.RequestsPerSecond)
	viper.SetDefault("advisor.burst", d.Advisor.Burst)
	viper.SetDefault("advisor.max_records", d.Advisor.MaxRecords)
	viper.SetDefault("advisor.cache_dir", d.Advisor.CacheDir)
	viper.SetDefault("advisor.http_proxy", d.Advisor.HTTPProxy)
	viper.SetDefault("history.path", d.History.Path)
}

// loadConfig builds the effective configuration: flags, then QUIZLINT_*
// env, then the config file, then defaults.
func loadConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if noMD, _ := cmd.Flags().GetBool("no-md"); noMD {
		cfg.Output.Markdown = false
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	// Provider keys follow the usual environment names
	if cfg.Advisor.APIKey == "" && strings.EqualFold(cfg.Advisor.Provider, "openai") {
		cfg.Advisor.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Advisor.BaseURL == "" && strings.EqualFold(cfg.Advisor.Provider, "ollama") {
		cfg.Advisor.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	return cfg, nil
}

// newLogger writes stage warnings to stderr; --verbose adds debug output
func newLogger(cfg *model.Config) zerolog.Logger {
	level := zerolog.WarnLevel
	if cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
