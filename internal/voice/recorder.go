package voice

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/audio"
	"github.com/jasir-pv/Ai-ChatBot/internal/infra/storage"
	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
)

// maxClipBytes caps one utterance; about five minutes of 16 kHz PCM.
const maxClipBytes = 10 << 20

var errNoTranscriber = errors.New("no speech-to-text provider configured")

// Recorder buffers microphone frames between Start and Stop and transcribes
// the result as one clip.
type Recorder struct {
	stt     transcript.Transcriber
	archive storage.Archive
	format  transcript.Format
	connID  string
	out     sender
	log     zerolog.Logger

	mu        sync.Mutex
	armed     bool
	buf       []byte
	overflow  bool
	clips     int
	uploading sync.WaitGroup
}

// NewRecorder returns a recorder for one connection. archive may be nil.
func NewRecorder(format transcript.Format, stt transcript.Transcriber, archive storage.Archive, connID string, out sender, log zerolog.Logger) *Recorder {
	return &Recorder{stt: stt, archive: archive, format: format, connID: connID, out: out, log: log}
}

// Start arms capture. Frames written before Start are dropped.
func (r *Recorder) Start(context.Context) error {
	if r.stt == nil {
		return errNoTranscriber
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.buf = r.buf[:0]
	r.overflow = false
	return nil
}

// Write appends a microphone frame while armed.
func (r *Recorder) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return
	}
	if len(r.buf)+len(p) > maxClipBytes {
		if !r.overflow {
			r.log.Warn().Int("bytes", len(r.buf)).Msg("utterance too long; dropping further audio")
			r.overflow = true
		}
		return
	}
	r.buf = append(r.buf, p...)
}

// Stop disarms capture and transcribes what was heard.
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	data := append([]byte(nil), r.buf...)
	r.buf = r.buf[:0]
	r.armed = false
	r.clips++
	n := r.clips
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	if r.format == transcript.FormatPCM16k && !audio.HasVoice(data) {
		r.log.Debug().Int("bytes", len(data)).Msg("no voice activity in clip; skipping transcription")
		return "", nil
	}

	clip := transcript.Clip{Data: data, Format: r.format}
	r.archiveClip(clip, n)

	start := time.Now()
	text, err := r.stt.Transcribe(ctx, clip)
	if err != nil {
		if ctx.Err() == nil {
			r.out.sendJSON(errorMessage{Type: msgError, Message: "transcription failed"})
		}
		return "", fmt.Errorf("transcribe: %w", err)
	}
	r.log.Debug().Dur("took", time.Since(start)).Int("bytes", len(data)).Msg("clip transcribed")
	return text, nil
}

// archiveClip uploads in the background; archive failures never affect the turn.
func (r *Recorder) archiveClip(clip transcript.Clip, n int) {
	if r.archive == nil {
		return
	}
	key := path.Join("live", r.connID, fmt.Sprintf("%03d-%s", n, clip.Name()))
	body := clip.Encoded()
	r.uploading.Add(1)
	go func() {
		defer r.uploading.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.archive.Upload(ctx, key, clip.ContentType(), body); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("clip archive failed")
			return
		}
		r.log.Debug().Str("key", key).Msg("clip archived")
	}()
}

// Wait blocks until background uploads finish.
func (r *Recorder) Wait() { r.uploading.Wait() }
