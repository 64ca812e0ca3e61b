package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/apresai/voicebox/internal/wav"
)

const googleDefaultLanguage = "en-US"

// GoogleProvider implements Provider using Google Cloud TTS Chirp 3 HD
// voices, which share their names with the Gemini prebuilt voices.
// It has no multi-speaker mode; Service synthesizes dialogue turn by turn.
type GoogleProvider struct {
	client       *texttospeech.Client
	languageCode string
	log          *slog.Logger
}

func NewGoogleProvider(ctx context.Context, cfg ProviderConfig) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}

	lang := cfg.LanguageCode
	if lang == "" {
		lang = googleDefaultLanguage
	}
	return &GoogleProvider{client: client, languageCode: lang, log: cfg.logger()}, nil
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

// VoiceName returns the Cloud TTS voice name for a Gemini voice ID.
func (p *GoogleProvider) VoiceName(voiceID string) string {
	return p.languageCode + "-Chirp3-HD-" + voiceID
}

func (p *GoogleProvider) Synthesize(ctx context.Context, text string, voiceID string) (AudioResult, error) {
	start := time.Now()
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.languageCode,
			Name:         p.VoiceName(voiceID),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: wav.FrameRate,
		},
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return AudioResult{}, &ServiceError{Provider: ProviderGoogle, Err: err}
	}
	if len(resp.AudioContent) == 0 {
		return AudioResult{}, &ServiceError{Provider: ProviderGoogle, Err: ErrNoAudio}
	}

	p.log.DebugContext(ctx, "Google TTS synthesized", "chars", len(text), "bytes", len(resp.AudioContent),
		"elapsed", time.Since(start).Round(time.Millisecond))

	// LINEAR16 responses carry a WAV header.
	return AudioResult{Data: resp.AudioContent, Format: FormatWAV}, nil
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

var _ Provider = (*GoogleProvider)(nil)
