// Package studio runs one synthesis action end to end: validate the input,
// call the synthesis service once, and wrap the PCM in a WAV container.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/voicebox/internal/observability"
	"github.com/apresai/voicebox/internal/progress"
	"github.com/apresai/voicebox/internal/tts"
	"github.com/apresai/voicebox/internal/voices"
	"github.com/apresai/voicebox/internal/wav"
)

var tracer = otel.Tracer("voicebox/studio")

// Stages reported in StageError.
const (
	StageValidate   = string(progress.StageValidate)
	StageSynthesize = string(progress.StageSynthesize)
	StageEncode     = string(progress.StageEncode)
	StageSave       = string(progress.StageSave)
)

// Fixed download names per mode.
const (
	SingleSpeakerFile = "single_speaker.wav"
	MultiSpeakerFile  = "multi_speaker.wav"
)

// FileName returns the download name for a mode.
func FileName(mode tts.Mode) string {
	if mode == tts.ModeMulti {
		return MultiSpeakerFile
	}
	return SingleSpeakerFile
}

// StageError reports which stage of a generation failed.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Input is one user action. Text holds the single-speaker text or the
// two-speaker transcript; Voice applies to single mode, Speaker1Voice and
// Speaker2Voice to multi mode. All voices are catalog descriptors.
type Input struct {
	Mode          tts.Mode
	Text          string
	Voice         string
	Speaker1Voice string
	Speaker2Voice string
}

// Result is a finished, playable container.
type Result struct {
	ID       ulid.ULID
	Mode     tts.Mode
	Request  tts.Request
	Audio    []byte
	FileName string
	MIMEType string
	PCMBytes int
	Duration time.Duration
	Cached   bool
}

type Options struct {
	// Catalog resolves voice descriptors. Defaults to voices.Default.
	Catalog *voices.Catalog
	// Provider names the synthesis backend; it scopes cache entries.
	Provider string
	// CacheSize is the number of containers kept in memory. 0 disables caching.
	CacheSize int
	Logger    *slog.Logger
	Progress  progress.Callback
}

// Generator turns Inputs into Results using a Synthesizer.
type Generator struct {
	synth    tts.Synthesizer
	catalog  *voices.Catalog
	provider string
	cache    *audioCache
	log      *slog.Logger
	progress progress.Callback
}

func New(synth tts.Synthesizer, opts Options) (*Generator, error) {
	if synth == nil {
		return nil, errors.New("studio: synthesizer is required")
	}
	cache, err := newAudioCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		synth:    synth,
		catalog:  opts.Catalog,
		provider: opts.Provider,
		cache:    cache,
		log:      opts.Logger,
		progress: opts.Progress,
	}
	if g.catalog == nil {
		g.catalog = voices.Default
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.progress == nil {
		g.progress = progress.NopCallback
	}
	return g, nil
}

// Catalog returns the voice catalog used to resolve descriptors.
func (g *Generator) Catalog() *voices.Catalog { return g.catalog }

// Build validates an input into a request without calling the service.
func (g *Generator) Build(in Input) (tts.Request, error) {
	return Build(g.catalog, in)
}

// Build validates an input against catalog. Callers can run it before any
// backend is configured.
func Build(catalog *voices.Catalog, in Input) (tts.Request, error) {
	switch in.Mode {
	case tts.ModeSingle, "":
		return tts.BuildSingleSpeaker(catalog, in.Text, in.Voice)
	case tts.ModeMulti:
		return tts.BuildMultiSpeaker(catalog, in.Text, in.Speaker1Voice, in.Speaker2Voice)
	default:
		return nil, &tts.ValidationError{Field: "mode", Err: fmt.Errorf("unsupported mode %q", in.Mode)}
	}
}

// Generate runs one action. Validation failures return before the
// synthesizer is called; any failure returns no Result.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "studio.generate")
	defer span.End()

	res, err := g.generate(ctx, in, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")

		stage := StageValidate
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		observability.RecordError(stage)
		observability.RecordSynthesis(string(modeOf(in)), false, time.Since(start))

		e := progress.NewEvent(progress.Stage(stage), "Failed", 0, start)
		e.Error = err
		g.progress(e)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("studio.id", res.ID.String()),
		attribute.Int("studio.audio_bytes", len(res.Audio)),
		attribute.Bool("studio.cached", res.Cached),
	)
	observability.RecordSynthesis(string(res.Mode), true, time.Since(start))
	return res, nil
}

func (g *Generator) generate(ctx context.Context, in Input, start time.Time) (*Result, error) {
	// Stage 1: validate
	g.progress(progress.NewEvent(progress.StageValidate, "Validating input", 0.05, start))
	req, err := g.Build(in)
	if err != nil {
		g.log.WarnContext(ctx, "Rejected input", "mode", modeOf(in), "error", err)
		return nil, &StageError{Stage: StageValidate, Message: "invalid input", Err: err}
	}
	mode := req.Mode()
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("studio.mode", string(mode)),
		attribute.Int("studio.input_chars", len(req.Input())),
	)
	span.SetAttributes(voiceAttrs(req)...)

	key := cacheKey(g.provider, req)
	if hit, ok := g.cache.get(key); ok {
		observability.RecordCacheLookup(true)
		g.log.InfoContext(ctx, "Serving cached audio", "mode", mode, "bytes", len(hit.audio))
		res := g.newResult(req, hit.audio, hit.pcmBytes, true)
		g.complete(res, start)
		return res, nil
	}
	if g.cache != nil {
		observability.RecordCacheLookup(false)
	}

	// Stage 2: synthesize
	g.progress(progress.NewEvent(progress.StageSynthesize, "Synthesizing speech", 0.2, start))
	stageStart := time.Now()
	pcm, err := g.synth.Synthesize(ctx, req)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesize, Message: "speech synthesis failed", Err: err}
	}
	observability.RecordAudioBytes(string(mode), len(pcm))
	g.log.InfoContext(ctx, "Synthesized speech", "mode", mode, "pcm_bytes", len(pcm),
		"elapsed", time.Since(stageStart).Round(time.Millisecond))

	// Stage 3: encode
	g.progress(progress.NewEvent(progress.StageEncode, "Encoding WAV", 0.9, start))
	audio, err := wav.Encode(pcm)
	if err != nil {
		return nil, &StageError{Stage: StageEncode, Message: "failed to encode audio", Err: err}
	}

	g.cache.put(key, audio, len(pcm))
	res := g.newResult(req, audio, len(pcm), false)
	g.complete(res, start)
	return res, nil
}

func (g *Generator) newResult(req tts.Request, audio []byte, pcmBytes int, cached bool) *Result {
	return &Result{
		ID:       ulid.Make(),
		Mode:     req.Mode(),
		Request:  req,
		Audio:    audio,
		FileName: FileName(req.Mode()),
		MIMEType: wav.MIMEType,
		PCMBytes: pcmBytes,
		Duration: wav.Standard.Duration(pcmBytes),
		Cached:   cached,
	}
}

func (g *Generator) complete(res *Result, start time.Time) {
	e := progress.NewEvent(progress.StageComplete, "Audio ready", 1, start)
	e.Duration = progress.FormatElapsed(res.Duration)
	e.SizeKB = float64(len(res.Audio)) / 1024
	e.Cached = res.Cached
	g.progress(e)
}

// CacheLen reports the number of cached containers.
func (g *Generator) CacheLen() int { return g.cache.len() }

func modeOf(in Input) tts.Mode {
	if in.Mode == "" {
		return tts.ModeSingle
	}
	return in.Mode
}

func voiceAttrs(req tts.Request) []attribute.KeyValue {
	switch r := req.(type) {
	case tts.SingleSpeaker:
		return []attribute.KeyValue{attribute.String("studio.voice", r.Voice)}
	case tts.MultiSpeaker:
		ids := make([]string, len(r.Speakers))
		for i, s := range r.Speakers {
			ids[i] = s.Voice
		}
		return []attribute.KeyValue{attribute.StringSlice("studio.voices", ids)}
	}
	return nil
}
