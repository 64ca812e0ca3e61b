// Package secrets resolves the synthesis API key.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/voicebox/internal/config"
	"github.com/apresai/voicebox/internal/tts"
)

// EnvKeys are checked in order after the explicit flag and VOICEBOX_API_KEY.
var EnvKeys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver finds the API key for a provider.
type Resolver struct {
	SecretID  string
	AWSRegion string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Client defaults to a Secrets Manager client built from the default AWS
	// config, created on first use.
	Client SecretsManagerAPI
	Logger *slog.Logger
}

// NewResolver builds a resolver from the loaded configuration.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	return &Resolver{SecretID: cfg.SecretID, AWSRegion: cfg.AWSRegion, Logger: logger}
}

// APIKey returns the key for provider, looking at flagValue, fallback (the
// configured VOICEBOX_API_KEY), the environment and finally Secrets Manager.
// Providers that authenticate with Application Default Credentials get "".
// A missing key is a *config.ConfigError.
func (r *Resolver) APIKey(ctx context.Context, provider, flagValue, fallback string) (string, error) {
	if !tts.NeedsAPIKey(provider) {
		return "", nil
	}
	if flagValue != "" {
		return flagValue, nil
	}
	if fallback != "" {
		return fallback, nil
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range EnvKeys {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v, nil
		}
	}

	if r.SecretID != "" {
		key, err := r.fromSecretsManager(ctx)
		if err != nil {
			r.logger().WarnContext(ctx, "Failed to load API key from Secrets Manager", "secret_id", r.SecretID, "error", err)
		} else if key != "" {
			r.logger().InfoContext(ctx, "Loaded API key from Secrets Manager", "secret_id", r.SecretID)
			return key, nil
		}
	}

	return "", &config.ConfigError{
		Field:   "api key",
		Message: fmt.Sprintf("the %s provider needs an API key: pass --api-key, set GEMINI_API_KEY, or set %s_SECRET_ID", provider, config.Prefix),
	}
}

func (r *Resolver) fromSecretsManager(ctx context.Context) (string, error) {
	client := r.Client
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(r.AWSRegion))
		if err != nil {
			return "", fmt.Errorf("load aws config: %w", err)
		}
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
		client = secretsmanager.NewFromConfig(awsCfg)
		r.Client = client
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(r.SecretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", r.SecretID)
	}
	return parseSecret(*out.SecretString), nil
}

// parseSecret accepts either the raw key or a JSON object holding it under
// one of EnvKeys or "api_key".
func parseSecret(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return s
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return ""
	}
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "api_key"} {
		if v := strings.TrimSpace(fields[name]); v != "" {
			return v
		}
	}
	return ""
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
