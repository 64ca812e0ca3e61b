// Package config loads voicebox settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/apresai/voicebox/internal/tts"
)

// Prefix is prepended to every variable name, e.g. VOICEBOX_PROVIDER.
const Prefix = "VOICEBOX"

// Config holds all runtime configuration.
type Config struct {
	// Synthesis backend
	Provider       string        `envconfig:"PROVIDER" default:"gemini"` // gemini, vertex, vertex-express, google
	Model          string        `envconfig:"MODEL"`
	APIKey         string        `envconfig:"API_KEY"`
	BaseURL        string        `envconfig:"BASE_URL"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"90s"`

	// Google Cloud (vertex and google providers)
	GCPProject   string `envconfig:"GCP_PROJECT"`
	GCPRegion    string `envconfig:"GCP_REGION" default:"us-central1"`
	LanguageCode string `envconfig:"LANGUAGE_CODE" default:"en-US"`

	// Credential lookup in AWS Secrets Manager; empty SecretID disables it.
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
	SecretID  string `envconfig:"SECRET_ID"`

	// Output
	OutputDir string `envconfig:"OUTPUT_DIR" default:"."`
	CacheSize int    `envconfig:"CACHE_SIZE" default:"32"` // containers kept in memory, 0 disables

	// Optional copy of each saved file in S3; empty S3Bucket disables it.
	S3Bucket      string `envconfig:"S3_BUCKET"`
	S3Prefix      string `envconfig:"S3_PREFIX"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`

	// HTTP server
	Port int `envconfig:"PORT" default:"8000"`

	// Observability
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
	Environment    string `envconfig:"ENVIRONMENT" default:"development"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

// ConfigError reports missing or invalid configuration. Commands return it
// before any synthesis request is made.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv reads the environment only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, &ConfigError{Message: err.Error()}
	}
	if cfg.GCPProject == "" {
		cfg.GCPProject = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if !slices.Contains(tts.ProviderNames, c.Provider) {
		return &ConfigError{Field: Prefix + "_PROVIDER", Message: fmt.Sprintf("unknown provider %q", c.Provider)}
	}
	if c.Provider == tts.ProviderVertex && c.GCPProject == "" {
		return &ConfigError{Field: Prefix + "_GCP_PROJECT", Message: "required for the vertex provider"}
	}
	if c.CacheSize < 0 {
		return &ConfigError{Field: Prefix + "_CACHE_SIZE", Message: "must not be negative"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: Prefix + "_PORT", Message: fmt.Sprintf("invalid port %d", c.Port)}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: Prefix + "_REQUEST_TIMEOUT", Message: "must be positive"}
	}
	return nil
}

// ProviderConfig returns the backend settings for tts.NewProvider.
func (c *Config) ProviderConfig(apiKey string, logger *slog.Logger) tts.ProviderConfig {
	return tts.ProviderConfig{
		APIKey:       apiKey,
		Model:        c.Model,
		BaseURL:      c.BaseURL,
		Project:      c.GCPProject,
		Region:       c.GCPRegion,
		LanguageCode: c.LanguageCode,
		Timeout:      c.RequestTimeout,
		Logger:       logger,
	}
}
