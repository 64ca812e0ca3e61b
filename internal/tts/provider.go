package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("voicebox/tts")

// AudioFormat represents the audio encoding returned by a provider.
type AudioFormat string

const (
	FormatPCM AudioFormat = "pcm" // raw 24kHz 16-bit signed little-endian mono
	FormatWAV AudioFormat = "wav"
)

// AudioResult is the output of a synthesis call.
type AudioResult struct {
	Data   []byte
	Format AudioFormat
}

// Provider synthesizes speech with a single voice.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voiceID string) (AudioResult, error)
	Close() error
}

// BatchProvider can synthesize a whole multi-speaker transcript in one call.
// Service prefers this over per-turn synthesis when available.
type BatchProvider interface {
	Provider
	SynthesizeDialogue(ctx context.Context, transcript string, speakers []SpeakerVoice) (AudioResult, error)
}

// ProviderConfig holds optional provider settings.
type ProviderConfig struct {
	APIKey       string
	Model        string
	BaseURL      string // overrides the provider endpoint (tests, proxies)
	Project      string // GCP project for vertex
	Region       string // GCP region for vertex
	LanguageCode string // google only
	Timeout      time.Duration
	Logger       *slog.Logger
}

func (c ProviderConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c ProviderConfig) httpClient(fallback time.Duration) *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{Timeout: timeout}
}

// Provider names accepted by NewProvider.
const (
	ProviderGemini        = "gemini"
	ProviderVertex        = "vertex"
	ProviderVertexExpress = "vertex-express"
	ProviderGoogle        = "google"
)

// ProviderNames lists the supported providers, default first.
var ProviderNames = []string{ProviderGemini, ProviderVertex, ProviderVertexExpress, ProviderGoogle}

// NeedsAPIKey reports whether the provider authenticates with an API key
// rather than Application Default Credentials.
func NeedsAPIKey(name string) bool {
	return name == ProviderGemini || name == ProviderVertexExpress
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, name string, cfg ProviderConfig) (Provider, error) {
	switch name {
	case ProviderGemini:
		return NewGeminiProvider(cfg)
	case ProviderVertex:
		return NewVertexProvider(cfg)
	case ProviderVertexExpress:
		return NewVertexExpressProvider(cfg)
	case ProviderGoogle:
		return NewGoogleProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose gemini, vertex, vertex-express, or google", name)
	}
}

// ErrNoAudio is wrapped by a ServiceError when a response carries no audio.
var ErrNoAudio = errors.New("response contained no audio data")

// ServiceError reports a failed call to the synthesis service.
// It is never retried.
type ServiceError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return e.Provider + ": synthesis failed"
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// truncate keeps error bodies readable in logs and messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
