// Package wav wraps raw synthesis output in a canonical RIFF/WAVE container
// and reads it back.
//
// The synthesis services return signed 16-bit little-endian mono PCM at
// 24 kHz. That contract is fixed, so the writer never inspects the samples:
// it emits a 44-byte header followed by the bytes verbatim.
package wav

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Fixed output format of the synthesis services.
const (
	Channels    = 1
	SampleWidth = 2 // bytes per sample
	FrameRate   = 24000

	MIMEType   = "audio/wav"
	HeaderSize = 44

	formatPCM = 1
)

// Format describes the PCM layout recorded in a container header.
type Format struct {
	Channels    int
	SampleWidth int
	FrameRate   int
}

// Standard is the format every container written by this package carries.
var Standard = Format{Channels: Channels, SampleWidth: SampleWidth, FrameRate: FrameRate}

func (f Format) String() string {
	return fmt.Sprintf("%dch/%dbit/%dHz", f.Channels, f.SampleWidth*8, f.FrameRate)
}

// ByteRate is the number of PCM bytes per second of audio.
func (f Format) ByteRate() int { return f.Channels * f.SampleWidth * f.FrameRate }

// Duration returns how long n bytes of PCM in this format play for.
func (f Format) Duration(n int) time.Duration {
	rate := f.ByteRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// ErrMalformed is returned by Decode for input that is not a PCM WAVE file.
var ErrMalformed = errors.New("malformed wav data")

// WriteError reports a failure of the underlying byte sink.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write wav %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Write emits a WAVE container holding pcm to w.
//
// Odd-length input keeps its true length in the data chunk and is followed
// by one pad byte, as RIFF requires chunks to be word aligned.
func Write(w io.Writer, pcm []byte) error {
	dataSize := uint32(len(pcm))
	pad := dataSize % 2
	blockAlign := Channels * SampleWidth

	bw := bufio.NewWriterSize(w, HeaderSize)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize + pad),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(formatPCM),
		uint16(Channels),
		uint32(FrameRate),
		uint32(FrameRate * blockAlign),
		uint16(blockAlign),
		uint16(SampleWidth * 8),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return &WriteError{Op: "header", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &WriteError{Op: "header", Err: err}
	}

	if _, err := w.Write(pcm); err != nil {
		return &WriteError{Op: "samples", Err: err}
	}
	if pad == 1 {
		if _, err := w.Write([]byte{0}); err != nil {
			return &WriteError{Op: "padding", Err: err}
		}
	}
	return nil
}

// Encode returns pcm wrapped in a WAVE container.
func Encode(pcm []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(pcm) + 1)
	if err := Write(&buf, pcm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a PCM WAVE container, returning its format and sample bytes.
// Chunks other than "fmt " and "data" are skipped.
func Decode(r io.Reader) (Format, []byte, error) {
	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return Format{}, nil, fmt.Errorf("%w: read RIFF header: %v", ErrMalformed, err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrMalformed)
	}

	var (
		format  Format
		haveFmt bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return Format{}, nil, fmt.Errorf("%w: no data chunk: %v", ErrMalformed, err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if chunk.Size < 16 {
				return Format{}, nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrMalformed, chunk.Size)
			}
			var fc struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &fc); err != nil {
				return Format{}, nil, fmt.Errorf("%w: read fmt chunk: %v", ErrMalformed, err)
			}
			if fc.AudioFormat != formatPCM {
				return Format{}, nil, fmt.Errorf("%w: unsupported audio format %d", ErrMalformed, fc.AudioFormat)
			}
			if err := skip(r, int64(chunk.Size-16)+int64(chunk.Size%2)); err != nil {
				return Format{}, nil, err
			}
			format = Format{
				Channels:    int(fc.Channels),
				SampleWidth: int(fc.BitsPerSample) / 8,
				FrameRate:   int(fc.SampleRate),
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			// Streaming encoders write 0 or 0xFFFFFFFF when the length is unknown.
			if chunk.Size == 0 || chunk.Size == 0xFFFFFFFF {
				data, err := io.ReadAll(r)
				if err != nil {
					return Format{}, nil, fmt.Errorf("%w: read samples: %v", ErrMalformed, err)
				}
				return format, data, nil
			}
			// The header length is untrusted; grow only as bytes arrive.
			data, err := io.ReadAll(io.LimitReader(r, int64(chunk.Size)))
			if err != nil {
				return Format{}, nil, fmt.Errorf("%w: read samples: %v", ErrMalformed, err)
			}
			if uint32(len(data)) != chunk.Size {
				return Format{}, nil, fmt.Errorf("%w: data chunk declares %d bytes, found %d", ErrMalformed, chunk.Size, len(data))
			}
			return format, data, nil

		default:
			if err := skip(r, int64(chunk.Size)+int64(chunk.Size%2)); err != nil {
				return Format{}, nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: skip %d bytes: %v", ErrMalformed, n, err)
	}
	return nil
}
