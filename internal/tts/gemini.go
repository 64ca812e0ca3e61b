package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	geminiDefaultModel   = "gemini-2.5-flash-preview-tts"
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	vertexExpressDefaultModel   = "gemini-2.5-flash-tts"
	vertexExpressDefaultBaseURL = "https://aiplatform.googleapis.com/v1/publishers/google"

	geminiTimeout   = 90 * time.Second
	maxErrorBodyLen = 500
)

// geminiRequest is the top-level request to the generateContent TTS endpoint.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig             *geminiVoiceConfig        `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *geminiMultiSpeakerConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiMultiSpeakerConfig struct {
	SpeakerVoiceConfigs []geminiSpeakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type geminiSpeakerVoiceConfig struct {
	Speaker     string            `json:"speaker"`
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

// geminiResponse is the generateContent response structure.
type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiCandidate struct {
	Content      geminiRespContent `json:"content"`
	FinishReason string            `json:"finishReason,omitempty"`
}

type geminiRespContent struct {
	Parts []geminiRespPart `json:"parts"`
}

type geminiRespPart struct {
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded PCM
}

// GeminiProvider implements both Provider and BatchProvider against a
// generateContent endpoint. The AI Studio, Vertex AI and Vertex express
// endpoints share the wire format and differ only in URL and auth.
type GeminiProvider struct {
	name       string
	model      string
	endpoint   string
	authorize  func(ctx context.Context, req *http.Request) error
	httpClient *http.Client
	log        *slog.Logger
}

// NewGeminiProvider creates a provider for the Gemini API (AI Studio).
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini TTS provider requires an API key")
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = geminiDefaultBaseURL
	}
	apiKey := cfg.APIKey

	return &GeminiProvider{
		name:     ProviderGemini,
		model:    model,
		endpoint: strings.TrimRight(base, "/") + "/models/" + model + ":generateContent",
		authorize: func(_ context.Context, req *http.Request) error {
			req.Header.Set("x-goog-api-key", apiKey)
			return nil
		},
		httpClient: cfg.httpClient(geminiTimeout),
		log:        cfg.logger(),
	}, nil
}

// NewVertexExpressProvider creates a provider for Vertex AI in express mode:
// API key auth against the aiplatform.googleapis.com endpoint.
func NewVertexExpressProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vertex-express TTS provider requires a Google Cloud API key")
	}
	model := cfg.Model
	if model == "" {
		model = vertexExpressDefaultModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = vertexExpressDefaultBaseURL
	}
	apiKey := cfg.APIKey

	return &GeminiProvider{
		name:     ProviderVertexExpress,
		model:    model,
		endpoint: strings.TrimRight(base, "/") + "/models/" + model + ":generateContent",
		authorize: func(_ context.Context, req *http.Request) error {
			q := req.URL.Query()
			q.Set("key", apiKey)
			req.URL.RawQuery = q.Encode()
			return nil
		},
		httpClient: cfg.httpClient(geminiTimeout),
		log:        cfg.logger(),
	}, nil
}

func (p *GeminiProvider) Name() string { return p.name }

// Synthesize does single-speaker synthesis.
func (p *GeminiProvider) Synthesize(ctx context.Context, text string, voiceID string) (AudioResult, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: &geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: voiceID},
				},
			},
		},
	}

	data, err := p.doRequest(ctx, req)
	if err != nil {
		return AudioResult{}, err
	}
	return AudioResult{Data: data, Format: FormatPCM}, nil
}

// SynthesizeDialogue sends the transcript as a multi-speaker conversation.
// The service matches speaker labels in the transcript to the voice configs
// and returns a single PCM stream.
func (p *GeminiProvider) SynthesizeDialogue(ctx context.Context, transcript string, speakers []SpeakerVoice) (AudioResult, error) {
	configs := make([]geminiSpeakerVoiceConfig, 0, len(speakers))
	for _, s := range speakers {
		configs = append(configs, geminiSpeakerVoiceConfig{
			Speaker: s.Label,
			VoiceConfig: geminiVoiceConfig{
				PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: s.Voice},
			},
		})
	}

	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: transcript}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				MultiSpeakerVoiceConfig: &geminiMultiSpeakerConfig{
					SpeakerVoiceConfigs: configs,
				},
			},
		},
	}

	data, err := p.doRequest(ctx, req)
	if err != nil {
		return AudioResult{}, err
	}
	return AudioResult{Data: data, Format: FormatPCM}, nil
}

func (p *GeminiProvider) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "tts.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("tts.provider", p.name),
		attribute.String("tts.model", p.model),
	)

	audio, err := p.generate(ctx, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio)))
	return audio, nil
}

func (p *GeminiProvider) generate(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.authorize(ctx, req); err != nil {
		return nil, &ServiceError{Provider: p.name, Err: err}
	}

	p.log.DebugContext(ctx, "POST generateContent", "provider", p.name, "model", p.model, "request_bytes", len(bodyBytes))
	start := time.Now()

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Provider: p.name, Err: fmt.Errorf("send request: %w", err)}
	}
	defer res.Body.Close()

	p.log.DebugContext(ctx, "generateContent response", "provider", p.name, "status", res.StatusCode,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
		return nil, &ServiceError{
			Provider:   p.name,
			StatusCode: res.StatusCode,
			Body:       truncate(strings.TrimSpace(string(errBody)), maxErrorBodyLen),
		}
	}

	var resp geminiResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, &ServiceError{Provider: p.name, Err: fmt.Errorf("parse response: %w", err)}
	}

	if len(resp.Candidates) == 0 ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return nil, &ServiceError{Provider: p.name, Err: noAudioReason(resp)}
	}

	audioB64 := resp.Candidates[0].Content.Parts[0].InlineData.Data
	audio, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		return nil, &ServiceError{Provider: p.name, Err: fmt.Errorf("decode audio base64: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &ServiceError{Provider: p.name, Err: ErrNoAudio}
	}

	p.log.DebugContext(ctx, "audio decoded", "provider", p.name, "pcm_bytes", len(audio))
	return audio, nil
}

func noAudioReason(resp geminiResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w (prompt blocked: %s)", ErrNoAudio, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return fmt.Errorf("%w (finish reason: %s)", ErrNoAudio, resp.Candidates[0].FinishReason)
	}
	return ErrNoAudio
}

func (p *GeminiProvider) Close() error { return nil }

var (
	_ Provider      = (*GeminiProvider)(nil)
	_ BatchProvider = (*GeminiProvider)(nil)
)
