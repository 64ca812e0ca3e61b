package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/tts"
	"github.com/apresai/voicebox/internal/voices"
)

// ToolDefs returns the MCP tool definitions.
func ToolDefs(c *voices.Catalog) []mcp.Tool {
	descriptors := c.Descriptors()
	voiceProp := func(desc, def string) map[string]any {
		return map[string]any{
			"type":        "string",
			"description": desc,
			"enum":        descriptors,
			"default":     def,
		}
	}

	return []mcp.Tool{
		{
			Name:        "synthesize_speech",
			Description: "Read text aloud with one voice. Returns a 24 kHz mono WAV file as audio content.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "The text to speak",
					},
					"voice": voiceProp("Voice type, e.g. Warm, Firm, Upbeat", voices.DefaultDescriptor),
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "synthesize_dialogue",
			Description: "Perform a two-speaker transcript. Lines must start with \"Speaker 1:\" or \"Speaker 2:\". Returns a WAV file as audio content.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"transcript": map[string]any{
						"type":        "string",
						"description": "Transcript with Speaker 1: and Speaker 2: lines",
					},
					"speaker1_voice": voiceProp("Voice type for Speaker 1", voices.DefaultDescriptor),
					"speaker2_voice": voiceProp("Voice type for Speaker 2", voices.DefaultSpeaker2Descriptor),
				},
				Required: []string{"transcript"},
			},
		},
		{
			Name:        "list_voices",
			Description: "List the available voice types in catalog order with their prebuilt voice names.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	gen *studio.Generator
	log *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(gen *studio.Generator, logger *slog.Logger) *Handlers {
	return &Handlers{gen: gen, log: logger}
}

// HandleSynthesizeSpeech runs a single-speaker generation.
func (h *Handlers) HandleSynthesizeSpeech(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.synthesize_speech")
	defer span.End()

	in := studio.Input{
		Mode:  tts.ModeSingle,
		Text:  mcp.ParseString(req, "text", ""),
		Voice: mcp.ParseString(req, "voice", voices.DefaultDescriptor),
	}
	span.SetAttributes(attribute.String("voice", in.Voice), attribute.Int("text_chars", len(in.Text)))
	return h.generate(ctx, in)
}

// HandleSynthesizeDialogue runs a two-speaker generation.
func (h *Handlers) HandleSynthesizeDialogue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.synthesize_dialogue")
	defer span.End()

	in := studio.Input{
		Mode:          tts.ModeMulti,
		Text:          mcp.ParseString(req, "transcript", ""),
		Speaker1Voice: mcp.ParseString(req, "speaker1_voice", voices.DefaultDescriptor),
		Speaker2Voice: mcp.ParseString(req, "speaker2_voice", voices.DefaultSpeaker2Descriptor),
	}
	span.SetAttributes(
		attribute.String("speaker1_voice", in.Speaker1Voice),
		attribute.String("speaker2_voice", in.Speaker2Voice),
		attribute.Int("text_chars", len(in.Text)),
	)
	return h.generate(ctx, in)
}

// HandleListVoices returns the catalog.
func (h *Handlers) HandleListVoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_voices")
	defer span.End()

	list := voiceList(h.gen.Catalog())
	span.SetAttributes(attribute.Int("result_count", len(list)))
	return jsonResult(map[string]any{
		"voices": list,
		"count":  len(list),
	})
}

func (h *Handlers) generate(ctx context.Context, in studio.Input) (*mcp.CallToolResult, error) {
	span := trace.SpanFromContext(ctx)

	res, err := h.gen.Generate(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		var verr *tts.ValidationError
		if errors.As(err, &verr) {
			return mcp.NewToolResultError(verr.Error()), nil
		}
		h.log.ErrorContext(ctx, "Tool synthesis failed", "mode", in.Mode, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("synthesis failed: %v", err)), nil
	}

	span.SetAttributes(attribute.String("result_id", res.ID.String()), attribute.Bool("cached", res.Cached))
	summary, err := json.Marshal(map[string]any{
		"id":          res.ID.String(),
		"file_name":   res.FileName,
		"mime_type":   res.MIMEType,
		"duration_ms": res.Duration.Milliseconds(),
		"bytes":       len(res.Audio),
		"cached":      res.Cached,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(summary)),
			mcp.NewAudioContent(base64.StdEncoding.EncodeToString(res.Audio), res.MIMEType),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
