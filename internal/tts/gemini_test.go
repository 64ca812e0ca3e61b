package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Path   string
	Query  string
	APIKey string
	Body   map[string]any
}

func newGeminiServer(t *testing.T, status int, respBody string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Query = r.URL.RawQuery
		captured.APIKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func audioResponse(pcm []byte) string {
	return `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":"` +
		base64.StdEncoding.EncodeToString(pcm) + `"}}]}}]}`
}

func TestGeminiProvider_Synthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	srv, captured := newGeminiServer(t, http.StatusOK, audioResponse(pcm))

	p, err := NewGeminiProvider(ProviderConfig{APIKey: "k-123", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := p.Synthesize(context.Background(), "Hello there", "Sulafat")
	require.NoError(t, err)
	assert.Equal(t, FormatPCM, res.Format)
	assert.Equal(t, pcm, res.Data)

	assert.Equal(t, "/models/gemini-2.5-flash-preview-tts:generateContent", captured.Path)
	assert.Equal(t, "k-123", captured.APIKey)

	contents := captured.Body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "Hello there", parts[0].(map[string]any)["text"])

	gen := captured.Body["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"AUDIO"}, gen["responseModalities"])
	speech := gen["speechConfig"].(map[string]any)
	assert.NotContains(t, speech, "multiSpeakerVoiceConfig")
	voice := speech["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	assert.Equal(t, "Sulafat", voice["voiceName"])
}

func TestGeminiProvider_SynthesizeDialogue(t *testing.T) {
	pcm := []byte{9, 9, 8, 8}
	srv, captured := newGeminiServer(t, http.StatusOK, audioResponse(pcm))

	p, err := NewGeminiProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL, Model: "custom-tts"})
	require.NoError(t, err)

	transcript := "Speaker 1: Hi!\nSpeaker 2: Hello!"
	res, err := p.SynthesizeDialogue(context.Background(), transcript, []SpeakerVoice{
		{Label: "Speaker 1", Voice: "Puck"},
		{Label: "Speaker 2", Voice: "Kore"},
	})
	require.NoError(t, err)
	assert.Equal(t, pcm, res.Data)
	assert.Equal(t, "/models/custom-tts:generateContent", captured.Path)

	parts := captured.Body["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, transcript, parts[0].(map[string]any)["text"])

	speech := captured.Body["generationConfig"].(map[string]any)["speechConfig"].(map[string]any)
	assert.NotContains(t, speech, "voiceConfig")
	configs := speech["multiSpeakerVoiceConfig"].(map[string]any)["speakerVoiceConfigs"].([]any)
	require.Len(t, configs, 2)

	first := configs[0].(map[string]any)
	assert.Equal(t, "Speaker 1", first["speaker"])
	assert.Equal(t, "Puck", first["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"])
	second := configs[1].(map[string]any)
	assert.Equal(t, "Speaker 2", second["speaker"])
	assert.Equal(t, "Kore", second["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"])
}

func TestVertexExpressProvider_KeyInQuery(t *testing.T) {
	srv, captured := newGeminiServer(t, http.StatusOK, audioResponse([]byte{0, 1}))

	p, err := NewVertexExpressProvider(ProviderConfig{APIKey: "express-key", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, ProviderVertexExpress, p.Name())

	_, err = p.Synthesize(context.Background(), "hi", "Puck")
	require.NoError(t, err)
	assert.Equal(t, "key=express-key", captured.Query)
	assert.Empty(t, captured.APIKey)
	assert.Equal(t, "/models/gemini-2.5-flash-tts:generateContent", captured.Path)
}

func TestGeminiProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		noAudio   bool
		wantCode  int
		wantInMsg string
	}{
		{name: "http error", status: http.StatusForbidden, body: `{"error":{"message":"API key not valid"}}`,
			wantCode: http.StatusForbidden, wantInMsg: "API key not valid"},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`,
			wantCode: http.StatusInternalServerError, wantInMsg: "oops"},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, noAudio: true},
		{name: "blocked prompt", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			noAudio: true, wantInMsg: "SAFETY"},
		{name: "no inline data", status: http.StatusOK,
			body: `{"candidates":[{"content":{"parts":[{}]},"finishReason":"OTHER"}]}`, noAudio: true, wantInMsg: "OTHER"},
		{name: "empty audio", status: http.StatusOK,
			body: `{"candidates":[{"content":{"parts":[{"inlineData":{"data":""}}]}}]}`, noAudio: true},
		{name: "bad json", status: http.StatusOK, body: `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGeminiServer(t, tt.status, tt.body)
			p, err := NewGeminiProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.Synthesize(context.Background(), "text", "Puck")
			require.Error(t, err)

			var serr *ServiceError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, ProviderGemini, serr.Provider)
			assert.Equal(t, tt.wantCode, serr.StatusCode)
			assert.Equal(t, tt.noAudio, errors.Is(err, ErrNoAudio))
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestGeminiProvider_TransportError(t *testing.T) {
	srv, _ := newGeminiServer(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()

	p, err := NewGeminiProvider(ProviderConfig{APIKey: "k", BaseURL: url})
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), "text", "Puck")
	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Zero(t, serr.StatusCode)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderGemini, ProviderConfig{})
	assert.Error(t, err, "gemini needs an API key")

	_, err = NewProvider(context.Background(), ProviderVertex, ProviderConfig{})
	assert.Error(t, err, "vertex needs a project")

	_, err = NewProvider(context.Background(), "polly", ProviderConfig{})
	assert.ErrorContains(t, err, "unknown TTS provider")

	p, err := NewProvider(context.Background(), ProviderVertex, ProviderConfig{Project: "proj", Region: "europe-west4"})
	require.NoError(t, err)
	assert.Equal(t, ProviderVertex, p.Name())
	assert.Equal(t,
		"https://europe-west4-aiplatform.googleapis.com/v1/projects/proj/locations/europe-west4/publishers/google/models/gemini-2.5-flash-tts:generateContent",
		p.(*GeminiProvider).endpoint)
}

func TestNeedsAPIKey(t *testing.T) {
	assert.True(t, NeedsAPIKey(ProviderGemini))
	assert.True(t, NeedsAPIKey(ProviderVertexExpress))
	assert.False(t, NeedsAPIKey(ProviderVertex))
	assert.False(t, NeedsAPIKey(ProviderGoogle))
}

func TestServiceError_Message(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncate(string(long), maxErrorBodyLen), maxErrorBodyLen+3)
	assert.Equal(t, "short", truncate("short", maxErrorBodyLen))

	err := &ServiceError{Provider: "gemini", StatusCode: 429, Body: "quota"}
	assert.Equal(t, "gemini API error (status 429): quota", err.Error())
	err = &ServiceError{Provider: "gemini", Err: ErrNoAudio}
	assert.Equal(t, "gemini: response contained no audio data", err.Error())
}
