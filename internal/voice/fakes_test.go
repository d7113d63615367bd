package voice

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
	"github.com/jasir-pv/Ai-ChatBot/internal/tts"
)

// captureSender records outbound frames.
type captureSender struct {
	mu     sync.Mutex
	json   []any
	binary [][]byte
}

func (c *captureSender) sendJSON(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.json = append(c.json, v)
}

func (c *captureSender) sendBinary(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binary = append(c.binary, b)
}

func (c *captureSender) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, v := range c.json {
		b, _ := json.Marshal(v)
		var m struct{ Type string }
		_ = json.Unmarshal(b, &m)
		out = append(out, m.Type)
	}
	return out
}

// playback returns the id carried by the most recent speak_end.
func (c *captureSender) playback() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.json) - 1; i >= 0; i-- {
		if m, ok := c.json[i].(speakEndMessage); ok {
			return m.Playback
		}
	}
	return 0
}

type fakeSTT struct {
	mu    sync.Mutex
	text  string
	err   error
	clips []transcript.Clip
}

func (f *fakeSTT) Transcribe(ctx context.Context, clip transcript.Clip) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, clip)
	return f.text, f.err
}

func (f *fakeSTT) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clips)
}

type fakeTTS struct {
	mu     sync.Mutex
	err    error
	failAt int // fail on this call number when > 0
	calls  int
	voices []string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice string) (tts.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.voices = append(f.voices, voice)
	if f.err != nil || (f.failAt > 0 && f.calls == f.failAt) {
		if f.err != nil {
			return tts.Audio{}, f.err
		}
		return tts.Audio{}, context.DeadlineExceeded
	}
	return tts.Audio{Data: []byte("mp3:" + text), MimeType: "audio/mpeg"}, nil
}

type fakeReplier struct {
	mu    sync.Mutex
	reply string
	err   error
	seen  []string
}

func (f *fakeReplier) Reply(ctx context.Context, conversationID, text string, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, conversationID+"|"+text)
	reply, err := f.reply, f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	for _, w := range strings.SplitAfter(reply, " ") {
		_ = onDelta(w)
	}
	return reply, nil
}

func (f *fakeReplier) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

type archived struct {
	key, contentType string
	size             int
}

type fakeArchive struct {
	mu    sync.Mutex
	items []archived
}

func (f *fakeArchive) Upload(ctx context.Context, key, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, archived{key: key, contentType: contentType, size: len(data)})
	return nil
}

type fakeAvatar struct {
	mu          sync.Mutex
	spoken      []string
	interrupted chan string
}

func (f *fakeAvatar) Speak(ctx context.Context, sessionID, text string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, sessionID+"|"+text)
	return json.RawMessage(`{}`), nil
}

func (f *fakeAvatar) Interrupt(ctx context.Context, sessionID string) error {
	f.interrupted <- sessionID
	return nil
}
