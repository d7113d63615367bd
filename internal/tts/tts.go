// Package tts turns reply text into playable audio.
package tts

import (
	"context"
	"errors"
)

// ErrMissingKey is returned when a synthesizer has no credentials.
var ErrMissingKey = errors.New("tts: api key missing")

// Audio is one synthesized clip ready for playback.
type Audio struct {
	Data     []byte
	MimeType string
}

// Synthesizer renders text as speech. voice may be empty for the default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Audio, error)
}
