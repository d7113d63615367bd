// Package transcript turns recorded speech into text.
package transcript

import (
	"context"
	"errors"

	"github.com/jasir-pv/Ai-ChatBot/internal/audio"
)

// Format names how a clip's bytes are encoded.
type Format string

const (
	// FormatWebM is a browser MediaRecorder clip (Opus in WebM).
	FormatWebM Format = "webm"
	// FormatPCM16k is raw mono 16-bit little-endian PCM at 16 kHz.
	FormatPCM16k Format = "pcm16k"
)

// SampleRate of FormatPCM16k clips.
const SampleRate = audio.SampleRate16k

// ErrUnsupportedFormat is returned by transcribers that cannot decode a clip.
var ErrUnsupportedFormat = errors.New("transcript: unsupported audio format")

// Clip is one recorded utterance.
type Clip struct {
	Data     []byte
	Format   Format
	Filename string // optional; derived from Format when empty
}

// Name returns the upload filename for the clip.
func (c Clip) Name() string {
	if c.Filename != "" {
		return c.Filename
	}
	if c.Format == FormatPCM16k {
		return "audio.wav"
	}
	return "audio.webm"
}

// ContentType returns the MIME type of the bytes Encoded returns.
func (c Clip) ContentType() string {
	switch c.Format {
	case FormatPCM16k:
		return "audio/wav"
	case FormatWebM:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// Encoded returns the clip as a self-describing file: PCM gets a WAV header.
func (c Clip) Encoded() []byte {
	if c.Format == FormatPCM16k {
		return audio.WAV(c.Data, SampleRate)
	}
	return c.Data
}

// Transcriber converts a clip to text. An empty result means nothing was said.
type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip) (string, error)
}

// ByFormat sends PCM clips to PCM when set and everything else to Default.
// It lets a streaming recognizer that only accepts raw PCM sit next to a
// batch one that decodes browser recordings.
type ByFormat struct {
	PCM     Transcriber
	Default Transcriber
}

func (b ByFormat) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if clip.Format == FormatPCM16k && b.PCM != nil {
		return b.PCM.Transcribe(ctx, clip)
	}
	if b.Default == nil {
		return "", ErrUnsupportedFormat
	}
	return b.Default.Transcribe(ctx, clip)
}
