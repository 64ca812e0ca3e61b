package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/tts"
	"github.com/apresai/voicebox/internal/voices"
)

// SynthesizeRequest is the JSON body of POST /api/synthesize. Omitted voices
// default to voices.DefaultDescriptor, or voices.DefaultSpeaker2Descriptor
// for Speaker 2.
type SynthesizeRequest struct {
	Mode          string `json:"mode"`
	Text          string `json:"text"`
	Voice         string `json:"voice,omitempty"`
	Speaker1Voice string `json:"speaker1_voice,omitempty"`
	Speaker2Voice string `json:"speaker2_voice,omitempty"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
	Field string `json:"field,omitempty"`
}

// VoiceInfo is one catalog entry in GET /api/voices.
type VoiceInfo struct {
	Descriptor string `json:"descriptor"`
	VoiceID    string `json:"voice_id"`
	Default    bool   `json:"default,omitempty"`
}

func (r SynthesizeRequest) input() (studio.Input, error) {
	mode, err := tts.ParseMode(r.Mode)
	if err != nil {
		return studio.Input{}, &tts.ValidationError{Field: "mode", Err: err}
	}
	return studio.Input{
		Mode:          mode,
		Text:          r.Text,
		Voice:         orDefault(r.Voice, voices.DefaultDescriptor),
		Speaker1Voice: orDefault(r.Speaker1Voice, voices.DefaultDescriptor),
		Speaker2Voice: orDefault(r.Speaker2Voice, voices.DefaultSpeaker2Descriptor),
	}, nil
}

func orDefault(descriptor, def string) string {
	if descriptor == "" {
		return def
	}
	return descriptor
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.synthesize")
	defer span.End()

	var body SynthesizeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return
	}

	in, err := body.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("mode", string(in.Mode)))

	res, err := s.gen.Generate(ctx, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("result_id", res.ID.String()))
	h := w.Header()
	h.Set("Content-Type", res.MIMEType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	h.Set("Content-Length", strconv.Itoa(len(res.Audio)))
	h.Set("X-Voicebox-Id", res.ID.String())
	h.Set("X-Voicebox-Cached", strconv.FormatBool(res.Cached))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio); err != nil {
		s.log.WarnContext(ctx, "Failed to write audio response", "error", err)
	}
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, voiceList(s.catalog))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.cfg.Provider,
		"version":  s.cfg.Version,
		"voices":   s.catalog.Len(),
	})
}

func voiceList(c *voices.Catalog) []VoiceInfo {
	personas := c.Personas()
	out := make([]VoiceInfo, len(personas))
	for i, p := range personas {
		out[i] = VoiceInfo{Descriptor: p.Descriptor, VoiceID: p.ID, Default: p.Descriptor == voices.DefaultDescriptor}
	}
	return out
}

// statusFor maps a generation error to an HTTP status: bad input is the
// caller's fault, a failed service call is an upstream failure.
func statusFor(err error) int {
	var verr *tts.ValidationError
	var serr *tts.ServiceError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &serr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var se *studio.StageError
	if errors.As(err, &se) {
		resp.Stage = se.Stage
	}
	var verr *tts.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
		resp.Error = verr.Error()
	}

	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "Synthesis failed", "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
