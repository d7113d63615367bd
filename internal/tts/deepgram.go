package tts

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"

	"github.com/jasir-pv/Ai-ChatBot/internal/audio"
)

// DeepgramClient synthesizes linear16 speech over the Deepgram speak websocket
// and returns it as WAV.
type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
	// idleWindow ends collection when no audio arrived for this long after
	// the first chunk, in case the Flushed event never comes.
	idleWindow time.Duration
	deadline   time.Duration
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramClient{
		apiKey:     apiKey,
		model:      model,
		sampleRate: 24000,
		encoding:   "linear16",
		idleWindow: 400 * time.Millisecond,
		deadline:   12 * time.Second,
	}
}

// pcmCollector accumulates audio frames delivered by the SDK callbacks.
type pcmCollector struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	lastRecv time.Time
	flushed  chan struct{}
	once     sync.Once
}

func newPCMCollector() *pcmCollector {
	return &pcmCollector{flushed: make(chan struct{})}
}

func (p *pcmCollector) Binary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Write(data)
	p.lastRecv = time.Now()
	return nil
}

func (p *pcmCollector) Flush(*msginterfaces.FlushedResponse) error {
	p.once.Do(func() { close(p.flushed) })
	return nil
}

func (p *pcmCollector) Open(*msginterfaces.OpenResponse) error         { return nil }
func (p *pcmCollector) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (p *pcmCollector) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (p *pcmCollector) Close(*msginterfaces.CloseResponse) error       { return nil }
func (p *pcmCollector) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (p *pcmCollector) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (p *pcmCollector) UnhandledEvent([]byte) error                    { return nil }

// idleFor reports whether audio has started and then paused for at least d.
func (p *pcmCollector) idleFor(d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.lastRecv.IsZero() && time.Since(p.lastRecv) > d
}

func (p *pcmCollector) bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.buf.Bytes())
}

// Synthesize treats voice as a Deepgram model name when it starts with "aura".
func (d *DeepgramClient) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	if d.apiKey == "" {
		return Audio{}, fmt.Errorf("deepgram: %w", ErrMissingKey)
	}
	if strings.TrimSpace(text) == "" {
		return Audio{Data: audio.WAV(nil, d.sampleRate), MimeType: "audio/wav"}, nil
	}
	model := d.model
	if strings.HasPrefix(voice, "aura") {
		model = voice
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}
	pc := newPCMCollector()
	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, pc)
	if err != nil {
		return Audio{}, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return Audio{}, fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return Audio{}, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		return Audio{}, fmt.Errorf("deepgram: flush: %w", err)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(d.deadline)
	defer deadline.Stop()
	for done := false; !done; {
		select {
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		case <-pc.flushed:
			done = true
		case <-ticker.C:
			done = pc.idleFor(d.idleWindow)
		case <-deadline.C:
			done = true
		}
	}

	pcm := pc.bytes()
	if len(pcm) == 0 {
		return Audio{}, fmt.Errorf("deepgram: no audio received")
	}
	return Audio{Data: audio.WAV(pcm, d.sampleRate), MimeType: "audio/wav"}, nil
}
