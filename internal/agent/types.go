package agent

import (
	"context"
	"time"
)

// Recorder captures microphone audio and turns it into a transcript.
// Start must not block: it only arms capture. Stop ends capture and returns
// the transcript; an empty string means nothing usable was heard. Stop called
// with an already canceled context only releases capture and must return
// without blocking; it runs on the coordinator loop.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
}

// Responder sends a transcript to the language model and returns the
// completed reply.
type Responder interface {
	Send(ctx context.Context, transcript string) (string, error)
}

// Speaker renders a reply as audible speech. Speak returns once playback
// has ended (or failed). Stop cancels playback and must not block.
// Calls made for a session that has since stopped see their context canceled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// State is the externally visible phase of a live conversation.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Status is a snapshot for rendering; nothing inside the coordinator reads it back.
type Status struct {
	State  State
	Active bool // live mode wants to keep cycling
	Turns  int  // completed replies since Start
}

// Hooks are optional observers invoked from the coordinator loop.
// They must return quickly.
type Hooks struct {
	OnStatus     func(Status)
	OnTranscript func(text string)
	OnReply      func(text string)
}

// Config tunes the coordinator.
type Config struct {
	// SettleDelay is waited after playback ends before the microphone is
	// re-armed so the tail of our own audio is not captured.
	SettleDelay time.Duration
	// CallTimeout bounds each Recorder.Stop, Responder.Send and Speaker.Speak call.
	// Zero means no bound.
	CallTimeout time.Duration
}

// DefaultConfig mirrors the browser client's pacing.
func DefaultConfig() Config {
	return Config{
		SettleDelay: 500 * time.Millisecond,
	}
}
