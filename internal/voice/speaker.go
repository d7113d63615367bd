package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/tts"
)

// chunkReply splits a reply into sentence-like chunks so the first one can
// play while the rest are synthesized. Splits on '.', '?', '!' and newlines,
// retaining punctuation.
func chunkReply(reply string) []string {
	txt := strings.TrimSpace(reply)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	flush := func() {
		if chunk := strings.TrimSpace(b.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		b.Reset()
	}
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			flush()
		case '\n', '\r':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return chunks
}

// playback tracks one Speak call waiting for the client's playback_ended.
// Each call gets a fresh id which the client echoes back, so a report for an
// earlier utterance cannot end a later one.
type playback struct {
	mu     sync.Mutex
	last   int
	id     int
	ended  chan struct{}
	cancel context.CancelFunc
}

// begin arms a fresh wait and returns its playback id.
func (p *playback) begin(ctx context.Context) (context.Context, int, <-chan struct{}, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last++
	p.id = p.last
	p.ended = make(chan struct{})
	p.cancel = cancel
	return ctx, p.id, p.ended, cancel
}

// markEnded releases the Speak call with the given id. Other ids are ignored.
func (p *playback) markEnded(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ended == nil || id != p.id {
		return false
	}
	close(p.ended)
	p.ended = nil
	return true
}

// abort cancels the current Speak call. It reports whether one was running.
func (p *playback) abort() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return false
	}
	p.cancel()
	p.cancel = nil
	p.ended = nil
	p.id = 0
	return true
}

// finish clears state left by the Speak call with the given id, unless a
// newer call has already taken over.
func (p *playback) finish(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id != p.id {
		return
	}
	p.cancel = nil
	p.ended = nil
	p.id = 0
}

func waitEnded(ctx context.Context, ended <-chan struct{}) error {
	select {
	case <-ended:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AudioSpeaker synthesizes each chunk of a reply and streams it to the
// client, then waits for the client to report that playback ended.
type AudioSpeaker struct {
	tts   tts.Synthesizer
	voice string
	out   sender
	log   zerolog.Logger
	pb    playback
}

func NewAudioSpeaker(synth tts.Synthesizer, voice string, out sender, log zerolog.Logger) *AudioSpeaker {
	return &AudioSpeaker{tts: synth, voice: voice, out: out, log: log}
}

func (s *AudioSpeaker) Speak(ctx context.Context, text string) error {
	ctx, id, ended, cancel := s.pb.begin(ctx)
	defer cancel()
	defer s.pb.finish(id)

	sent := 0
	for i, chunk := range chunkReply(text) {
		a, err := s.tts.Synthesize(ctx, chunk, s.voice)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if sent == 0 {
				s.out.sendJSON(errorMessage{Type: msgError, Message: "speech synthesis failed"})
				return fmt.Errorf("synthesize: %w", err)
			}
			// Play what we have rather than nothing.
			s.log.Warn().Err(err).Int("chunk", i).Msg("synthesis failed mid-reply; truncating")
			break
		}
		s.out.sendJSON(speakMessage{Type: msgSpeak, Playback: id, Seq: i, Mime: a.MimeType, Text: chunk})
		s.out.sendBinary(a.Data)
		sent++
	}
	if sent == 0 {
		return errors.New("nothing to speak")
	}
	s.out.sendJSON(speakEndMessage{Type: msgSpeakEnd, Playback: id})
	return waitEnded(ctx, ended)
}

// Stop cancels synthesis and tells the client to drop queued audio.
func (s *AudioSpeaker) Stop() {
	if s.pb.abort() {
		s.out.sendJSON(typeMessage{Type: msgSpeakCancel})
	}
}

// PlaybackEnded is called when the client reports the last chunk of the
// given playback finished. It reports whether a Speak call was released.
func (s *AudioSpeaker) PlaybackEnded(id int) bool { return s.pb.markEnded(id) }

// AvatarClient is the part of the HeyGen client the avatar speaker needs.
type AvatarClient interface {
	Speak(ctx context.Context, sessionID, text string) (json.RawMessage, error)
	Interrupt(ctx context.Context, sessionID string) error
}

// AvatarSpeaker has a streaming avatar say the reply. The client renders the
// avatar's media and reports playback_ended when the avatar stops talking.
type AvatarSpeaker struct {
	client    AvatarClient
	sessionID string
	out       sender
	log       zerolog.Logger
	pb        playback
}

func NewAvatarSpeaker(client AvatarClient, sessionID string, out sender, log zerolog.Logger) *AvatarSpeaker {
	return &AvatarSpeaker{client: client, sessionID: sessionID, out: out, log: log}
}

func (s *AvatarSpeaker) Speak(ctx context.Context, text string) error {
	ctx, id, ended, cancel := s.pb.begin(ctx)
	defer cancel()
	defer s.pb.finish(id)

	if _, err := s.client.Speak(ctx, s.sessionID, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.out.sendJSON(errorMessage{Type: msgError, Message: "avatar speak failed"})
		return fmt.Errorf("avatar speak: %w", err)
	}
	s.out.sendJSON(speakMessage{Type: msgSpeak, Playback: id, Mime: "avatar", Text: text})
	s.out.sendJSON(speakEndMessage{Type: msgSpeakEnd, Playback: id})
	return waitEnded(ctx, ended)
}

// Stop interrupts the avatar in the background.
func (s *AvatarSpeaker) Stop() {
	if !s.pb.abort() {
		return
	}
	s.out.sendJSON(typeMessage{Type: msgSpeakCancel})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.Interrupt(ctx, s.sessionID); err != nil {
			s.log.Warn().Err(err).Msg("avatar interrupt failed")
		}
	}()
}

func (s *AvatarSpeaker) PlaybackEnded(id int) bool { return s.pb.markEnded(id) }
