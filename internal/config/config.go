package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moldworks/moldlab-cli/internal/cost"
	"github.com/moldworks/moldlab-cli/pkg/gemini"
)

// Config holds the full application configuration.
type Config struct {
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GeminiConfig holds the text-generation endpoint settings. The key is
// taken from config/env, or read from KeyFile when unset; it is never
// written to any output artifact.
type GeminiConfig struct {
	Endpoint        string  `yaml:"endpoint" mapstructure:"endpoint"`
	Model           string  `yaml:"model" mapstructure:"model"`
	Key             string  `yaml:"key" mapstructure:"key"`
	KeyFile         string  `yaml:"key_file" mapstructure:"key_file"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxOutputTokens int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	RateLimitPerMin int     `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
}

// ResolveKey returns the API key, falling back to the key file.
func (g GeminiConfig) ResolveKey() (string, error) {
	if g.Key != "" {
		return g.Key, nil
	}
	if g.KeyFile == "" {
		return "", eris.New("config: gemini key not set and no key file configured")
	}
	if _, err := os.Stat(g.KeyFile); err != nil {
		return "", eris.Wrapf(err, "config: gemini key file %s", g.KeyFile)
	}
	return gemini.KeyFromFile(g.KeyFile)
}

// Timeout returns the per-call timeout as a duration.
func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// ExperimentConfig configures the Taguchi run.
type ExperimentConfig struct {
	MatrixCSV       string `yaml:"matrix_csv" mapstructure:"matrix_csv"`
	Dataset         string `yaml:"dataset" mapstructure:"dataset"`
	OutDir          string `yaml:"out_dir" mapstructure:"out_dir"`
	SamplesPerTrial int    `yaml:"samples_per_trial" mapstructure:"samples_per_trial"`
	Seed            int64  `yaml:"seed" mapstructure:"seed"`
	IncludePrompt   bool   `yaml:"include_prompt" mapstructure:"include_prompt"`
}

// RetryConfig configures the backoff policy around LLM calls.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutMaxAttempts int     `yaml:"timeout_max_attempts" mapstructure:"timeout_max_attempts"`
	InitialBackoffMS   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier         float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction     float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// StoreConfig configures the resume index.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MOLDLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.key_file", ".secrets/gemini_key.txt")
	v.SetDefault("gemini.timeout_secs", 30)
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.rate_limit_per_min", 30)
	v.SetDefault("experiment.out_dir", "outputs/taguchi_runs")
	v.SetDefault("experiment.samples_per_trial", 10)
	v.SetDefault("experiment.seed", 1)
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.timeout_max_attempts", 2)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("store.path", "outputs/moldlab_index.db")
	v.SetDefault("pricing.gemini.input_per_mtok", 0.10)
	v.SetDefault("pricing.gemini.output_per_mtok", 0.40)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
