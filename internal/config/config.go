// Package config loads the evaluator settings from flags, environment variables,
// a local .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/giantswarm/peel-evaluator/internal/embeddings"
	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/llm"
	"github.com/giantswarm/peel-evaluator/internal/prompt"
)

// EnvPrefix is prepended to every setting when read from the environment,
// e.g. PEEL_HTTP_ADDR for http-addr.
const EnvPrefix = "PEEL"

// Setting keys. Flags with the same name are bound to them.
const (
	KeyAPIKey              = "api-key"
	KeyBaseURL             = "base-url"
	KeyModel               = "model"
	KeyModels              = "models"
	KeyEmbeddingModel      = "embedding-model"
	KeyEmbeddingDimensions = "embedding-dimensions"
	KeyOfflineEmbeddings   = "offline-embeddings"
	KeyTemperature         = "temperature"
	KeyK                   = "k"
	KeyTemplate            = "template"
	KeyCorpus              = "corpus"
	KeyCorpusDir           = "corpus-dir"
	KeyHTTPAddr            = "http-addr"
	KeyRateLimit           = "rate-limit"
	KeyRateBurst           = "rate-burst"
	KeyMaxBodyBytes        = "max-body-bytes"
)

// DefaultModels are offered in the model selector when none are configured.
var DefaultModels = []string{"gpt-5", "gpt-4.1-mini", "gpt-4o-mini"}

// Config holds the resolved settings.
type Config struct {
	APIKey              string
	BaseURL             string
	Model               string
	Models              []string
	EmbeddingModel      string
	EmbeddingDimensions int
	OfflineEmbeddings   bool
	Temperature         float64
	K                   int
	Template            string
	Corpus              string
	CorpusDir           string
	HTTPAddr            string
	RateLimit           float64
	RateBurst           int
	MaxBodyBytes        int64
}

// LoadOptions controls where settings are read from.
type LoadOptions struct {
	// Flags are bound by name; a flag set on the command line wins over every other source.
	Flags *pflag.FlagSet
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is loaded into the process environment if it exists. Empty means ".env".
	EnvFile string
}

// Load resolves the configuration. Precedence, highest first: flags, environment,
// config file, defaults. A missing API key is not an error; see HasAPIKey.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Skip logging when absent (e.g. env from secrets).
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "file", envFile, "error", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The OpenAI variables are read under their conventional names as well.
	if err := v.BindEnv(KeyAPIKey, "PEEL_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}
	if err := v.BindEnv(KeyBaseURL, "PEEL_BASE_URL", "OPENAI_BASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		if err := v.BindPFlags(opts.Flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	cfg := &Config{
		APIKey:              strings.TrimSpace(v.GetString(KeyAPIKey)),
		BaseURL:             strings.TrimSpace(v.GetString(KeyBaseURL)),
		Model:               v.GetString(KeyModel),
		Models:              stringList(v.Get(KeyModels)),
		EmbeddingModel:      v.GetString(KeyEmbeddingModel),
		EmbeddingDimensions: v.GetInt(KeyEmbeddingDimensions),
		OfflineEmbeddings:   v.GetBool(KeyOfflineEmbeddings),
		Temperature:         v.GetFloat64(KeyTemperature),
		K:                   v.GetInt(KeyK),
		Template:            v.GetString(KeyTemplate),
		Corpus:              v.GetString(KeyCorpus),
		CorpusDir:           v.GetString(KeyCorpusDir),
		HTTPAddr:            v.GetString(KeyHTTPAddr),
		RateLimit:           v.GetFloat64(KeyRateLimit),
		RateBurst:           v.GetInt(KeyRateBurst),
		MaxBodyBytes:        v.GetInt64(KeyMaxBodyBytes),
	}
	if len(cfg.Models) == 0 {
		cfg.Models = slices.Clone(DefaultModels)
	}
	if cfg.Model != "" && !slices.Contains(cfg.Models, cfg.Model) {
		cfg.Models = append([]string{cfg.Model}, cfg.Models...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyModel, llm.DefaultModel)
	v.SetDefault(KeyModels, DefaultModels)
	v.SetDefault(KeyEmbeddingModel, embeddings.DefaultModel)
	v.SetDefault(KeyEmbeddingDimensions, 0)
	v.SetDefault(KeyOfflineEmbeddings, false)
	v.SetDefault(KeyTemperature, grader.DefaultTemperature)
	v.SetDefault(KeyK, grader.DefaultK)
	v.SetDefault(KeyTemplate, prompt.DefaultTemplate)
	v.SetDefault(KeyCorpus, examples.DefaultCorpus)
	v.SetDefault(KeyCorpusDir, "")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyRateLimit, 1.0)
	v.SetDefault(KeyRateBurst, 5)
	v.SetDefault(KeyMaxBodyBytes, int64(1<<20))
}

// stringList accepts a YAML list or a comma separated string.
func stringList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

// HasAPIKey reports whether a completion API key is configured.
func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || c.Temperature > grader.MaxTemperature {
		errs = append(errs, fmt.Errorf("%s must be between 0 and %.1f, got %g", KeyTemperature, grader.MaxTemperature, c.Temperature))
	}
	if c.K < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyK, c.K))
	}
	if _, err := prompt.Lookup(c.Template); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyTemplate, err))
	}
	if c.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyEmbeddingDimensions))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyRateLimit))
	}
	if c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyRateBurst))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyMaxBodyBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// GraderConfig returns the evaluation defaults.
func (c *Config) GraderConfig() grader.Config {
	return grader.Config{
		Model:       c.Model,
		Temperature: c.Temperature,
		K:           c.K,
		Template:    c.Template,
	}
}
