package tts

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects single-speaker or two-speaker synthesis.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// ParseMode accepts the mode names used by the CLI and HTTP API.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "single-speaker", "":
		return ModeSingle, nil
	case "multi", "multi-speaker", "dialogue":
		return ModeMulti, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be single or multi", s)
	}
}

// Speaker labels used in two-speaker transcripts.
const (
	Speaker1 = "Speaker 1"
	Speaker2 = "Speaker 2"
)

// SpeakerLabels lists the transcript labels in slot order.
var SpeakerLabels = []string{Speaker1, Speaker2}

// Request is a validated synthesis request: either SingleSpeaker or MultiSpeaker.
type Request interface {
	Mode() Mode
	// Input is the text or transcript sent to the service.
	Input() string
	isRequest()
}

// SpeakerVoice maps a transcript speaker label to a voice ID.
type SpeakerVoice struct {
	Label string `json:"speaker"`
	Voice string `json:"voice"`
}

// SingleSpeaker reads Text with one voice.
type SingleSpeaker struct {
	Text  string
	Voice string
}

func (SingleSpeaker) Mode() Mode { return ModeSingle }
func (r SingleSpeaker) Input() string { return r.Text }
func (SingleSpeaker) isRequest() {}

// MultiSpeaker reads Transcript with one voice per labelled speaker.
type MultiSpeaker struct {
	Transcript string
	Speakers   []SpeakerVoice
}

func (MultiSpeaker) Mode() Mode { return ModeMulti }
func (r MultiSpeaker) Input() string { return r.Transcript }
func (MultiSpeaker) isRequest() {}

// VoiceFor returns the voice assigned to label.
func (r MultiSpeaker) VoiceFor(label string) (string, bool) {
	for _, s := range r.Speakers {
		if s.Label == label {
			return s.Voice, true
		}
	}
	return "", false
}

// ErrEmptyInput is wrapped by a ValidationError when text is blank.
var ErrEmptyInput = errors.New("input text is empty")

// ValidationError reports user input rejected before any service call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersonaResolver maps a voice type descriptor to a voice ID.
type PersonaResolver interface {
	Resolve(descriptor string) (string, error)
}

// BuildSingleSpeaker validates text and resolves the voice type.
func BuildSingleSpeaker(personas PersonaResolver, text, descriptor string) (SingleSpeaker, error) {
	if strings.TrimSpace(text) == "" {
		return SingleSpeaker{}, &ValidationError{Field: "text", Err: ErrEmptyInput}
	}
	voice, err := personas.Resolve(descriptor)
	if err != nil {
		return SingleSpeaker{}, &ValidationError{Field: "voice", Err: err}
	}
	return SingleSpeaker{Text: text, Voice: voice}, nil
}

// BuildMultiSpeaker validates the transcript and resolves one voice type per
// speaker slot. Both slots may use the same voice.
func BuildMultiSpeaker(personas PersonaResolver, transcript, speaker1, speaker2 string) (MultiSpeaker, error) {
	if strings.TrimSpace(transcript) == "" {
		return MultiSpeaker{}, &ValidationError{Field: "transcript", Err: ErrEmptyInput}
	}
	speakers, err := buildSpeakers(personas, SpeakerLabels, []string{speaker1, speaker2})
	if err != nil {
		return MultiSpeaker{}, err
	}
	return MultiSpeaker{Transcript: transcript, Speakers: speakers}, nil
}

func buildSpeakers(personas PersonaResolver, labels, descriptors []string) ([]SpeakerVoice, error) {
	if len(labels) != len(descriptors) {
		return nil, fmt.Errorf("%d speaker labels for %d voices", len(labels), len(descriptors))
	}
	seen := make(map[string]bool, len(labels))
	speakers := make([]SpeakerVoice, 0, len(labels))
	for i, label := range labels {
		if seen[label] {
			return nil, &ValidationError{Field: "speakers", Err: fmt.Errorf("duplicate speaker label %q", label)}
		}
		seen[label] = true

		voice, err := personas.Resolve(descriptors[i])
		if err != nil {
			return nil, &ValidationError{Field: strings.ToLower(label) + " voice", Err: err}
		}
		speakers = append(speakers, SpeakerVoice{Label: label, Voice: voice})
	}
	return speakers, nil
}
