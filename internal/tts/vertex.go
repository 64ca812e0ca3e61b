package tts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	vertexDefaultModel  = "gemini-2.5-flash-tts"
	vertexDefaultRegion = "us-central1"
	vertexScope         = "https://www.googleapis.com/auth/cloud-platform"
)

// NewVertexProvider creates a provider for Gemini TTS on Vertex AI.
// Same voices and request format as AI Studio, authenticated with an OAuth2
// token from Application Default Credentials.
func NewVertexProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("a GCP project is required for the vertex TTS provider (set VOICEBOX_GCP_PROJECT)")
	}
	model := cfg.Model
	if model == "" {
		model = vertexDefaultModel
	}
	region := cfg.Region
	if region == "" {
		region = vertexDefaultRegion
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", region)
	}

	tokens := &adcTokens{}
	return &GeminiProvider{
		name:  ProviderVertex,
		model: model,
		endpoint: fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			strings.TrimRight(base, "/"), cfg.Project, region, model),
		authorize:  tokens.authorize,
		httpClient: cfg.httpClient(geminiTimeout),
		log:        cfg.logger(),
	}, nil
}

// adcTokens lazily creates a cached Application Default Credentials token source.
type adcTokens struct {
	mu sync.Mutex
	ts oauth2.TokenSource
}

func (a *adcTokens) authorize(ctx context.Context, req *http.Request) error {
	a.mu.Lock()
	if a.ts == nil {
		ts, err := google.DefaultTokenSource(context.WithoutCancel(ctx), vertexScope)
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("get default token source: %w (hint: run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)", err)
		}
		a.ts = oauth2.ReuseTokenSource(nil, ts)
	}
	ts := a.ts
	a.mu.Unlock()

	token, err := ts.Token()
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}
