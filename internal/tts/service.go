package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/voicebox/internal/transcript"
	"github.com/apresai/voicebox/internal/wav"
)

// Synthesizer turns a validated request into raw PCM: mono, 16-bit
// little-endian, 24 kHz.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Service adapts a Provider to the Synthesizer interface.
type Service struct {
	provider Provider
	log      *slog.Logger
}

func NewService(p Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: p, log: logger}
}

// Provider returns the backing provider name.
func (s *Service) Provider() string { return s.provider.Name() }

func (s *Service) Close() error { return s.provider.Close() }

// Synthesize makes exactly one service call for single-speaker requests and
// for dialogue on a BatchProvider. Other providers get one call per speaker
// turn, joined in transcript order.
func (s *Service) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "tts.synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("tts.provider", s.provider.Name()),
		attribute.String("tts.mode", string(req.Mode())),
		attribute.Int("tts.input_chars", len(req.Input())),
	)

	pcm, err := s.synthesize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("tts.pcm_bytes", len(pcm)))
	return pcm, nil
}

func (s *Service) synthesize(ctx context.Context, req Request) ([]byte, error) {
	switch r := req.(type) {
	case SingleSpeaker:
		setCalls(ctx, 1)
		res, err := s.provider.Synthesize(ctx, r.Text, r.Voice)
		if err != nil {
			return nil, err
		}
		return s.toPCM(res)

	case MultiSpeaker:
		if bp, ok := s.provider.(BatchProvider); ok {
			setCalls(ctx, 1)
			res, err := bp.SynthesizeDialogue(ctx, r.Transcript, r.Speakers)
			if err != nil {
				return nil, err
			}
			return s.toPCM(res)
		}
		return s.synthesizeTurns(ctx, r)

	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
}

func (s *Service) synthesizeTurns(ctx context.Context, r MultiSpeaker) ([]byte, error) {
	labels := make([]string, len(r.Speakers))
	for i, sp := range r.Speakers {
		labels[i] = sp.Label
	}
	segments := transcript.Parse(r.Transcript, labels)
	if len(segments) == 0 {
		return nil, &ValidationError{Field: "transcript", Err: ErrEmptyInput}
	}

	setCalls(ctx, len(segments))
	s.log.InfoContext(ctx, "Synthesizing dialogue turn by turn",
		"provider", s.provider.Name(), "turns", len(segments))

	var out bytes.Buffer
	for i, seg := range segments {
		voice, _ := r.VoiceFor(seg.Speaker)
		res, err := s.provider.Synthesize(ctx, seg.Text, voice)
		if err != nil {
			return nil, fmt.Errorf("turn %d (%s): %w", i+1, seg.Speaker, err)
		}
		pcm, err := s.toPCM(res)
		if err != nil {
			return nil, fmt.Errorf("turn %d (%s): %w", i+1, seg.Speaker, err)
		}
		out.Write(pcm)
	}
	return out.Bytes(), nil
}

// setCalls records how many service calls the action makes.
func setCalls(ctx context.Context, n int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("tts.calls", n))
}

// toPCM unwraps provider output into raw samples in the fixed format.
func (s *Service) toPCM(res AudioResult) ([]byte, error) {
	name := s.provider.Name()
	var pcm []byte

	switch res.Format {
	case FormatPCM:
		pcm = res.Data
	case FormatWAV:
		format, data, err := wav.Decode(bytes.NewReader(res.Data))
		if err != nil {
			return nil, &ServiceError{Provider: name, Err: err}
		}
		if format != wav.Standard {
			return nil, &ServiceError{Provider: name, Err: fmt.Errorf("unexpected audio format %s, want %s", format, wav.Standard)}
		}
		pcm = data
	default:
		return nil, &ServiceError{Provider: name, Err: fmt.Errorf("unsupported audio format %q", res.Format)}
	}

	if len(pcm) == 0 {
		return nil, &ServiceError{Provider: name, Err: ErrNoAudio}
	}
	return pcm, nil
}

var _ Synthesizer = (*Service)(nil)
