// Package playback plays WAV containers on the default audio device.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/apresai/voicebox/internal/wav"
)

const pollInterval = 50 * time.Millisecond

// ErrFormatMismatch is returned when a container's format differs from the
// one the audio device was opened with. Audio is never resampled.
var ErrFormatMismatch = errors.New("audio format differs from the open device")

// voice is one playing stream.
type voice interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// device opens voices on an audio output.
type device interface {
	NewVoice(r io.Reader) voice
}

type openFunc func(wav.Format) (device, error)

// Player plays containers one at a time. The audio device is opened lazily
// on the first Play with that container's format; oto allows one device per
// process.
type Player struct {
	open openFunc

	once    sync.Once
	dev     device
	format  wav.Format
	openErr error

	mu sync.Mutex // serializes Play
}

func New() *Player {
	return &Player{open: openOto}
}

// Play decodes the container and blocks until playback finishes or ctx is
// cancelled.
func (p *Player) Play(ctx context.Context, container []byte) error {
	format, pcm, err := wav.Decode(bytes.NewReader(container))
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}

	p.once.Do(func() {
		p.format = format
		p.dev, p.openErr = p.open(format)
	})
	if p.openErr != nil {
		return fmt.Errorf("open audio device: %w", p.openErr)
	}
	if format != p.format {
		return fmt.Errorf("%w: got %s, device is %s", ErrFormatMismatch, format, p.format)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.dev.NewVoice(bytes.NewReader(pcm))
	defer v.Close()
	v.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for v.IsPlaying() {
		select {
		case <-ctx.Done():
			v.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

type otoDevice struct {
	ctx *oto.Context
}

func (d otoDevice) NewVoice(r io.Reader) voice {
	return d.ctx.NewPlayer(r)
}

func openOto(f wav.Format) (device, error) {
	if f.SampleWidth != 2 {
		return nil, fmt.Errorf("unsupported sample width %d bytes", f.SampleWidth)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.FrameRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return otoDevice{ctx: ctx}, nil
}
