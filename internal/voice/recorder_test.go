package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
)

func tone(samples int, amplitude int16) []byte {
	b := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func TestRecorder_TranscribesArmedAudioOnly(t *testing.T) {
	stt := &fakeSTT{text: "hello"}
	arch := &fakeArchive{}
	r := NewRecorder(transcript.FormatPCM16k, stt, arch, "c1", &captureSender{}, zerolog.Nop())

	r.Write(tone(1600, 3000)) // before Start: dropped
	require.NoError(t, r.Start(context.Background()))
	r.Write(tone(1600, 3000))
	r.Write(tone(1600, 3000))
	text, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	require.Len(t, stt.clips, 1)
	assert.Len(t, stt.clips[0].Data, 2*1600*2)

	r.Wait()
	require.Len(t, arch.items, 1)
	assert.Equal(t, "live/c1/001-audio.wav", arch.items[0].key)
	assert.Equal(t, "audio/wav", arch.items[0].contentType)
	assert.Equal(t, 44+2*1600*2, arch.items[0].size)

	r.Write(tone(160, 3000)) // after Stop: dropped
	require.NoError(t, r.Start(context.Background()))
	text, err = r.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Len(t, stt.clips, 1, "empty clip is not transcribed")
}

func TestRecorder_SilentPCMSkipsTranscription(t *testing.T) {
	stt := &fakeSTT{text: "phantom"}
	r := NewRecorder(transcript.FormatPCM16k, stt, nil, "c1", &captureSender{}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	r.Write(tone(16000, 20))
	text, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, stt.count())
}

func TestRecorder_CanceledStopOnlyReleases(t *testing.T) {
	stt := &fakeSTT{text: "hello"}
	r := NewRecorder(transcript.FormatWebM, stt, nil, "c1", &captureSender{}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	r.Write([]byte("webm-bytes"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Stop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stt.count())

	r.Write([]byte("late"))
	require.NoError(t, r.Start(context.Background()))
	text, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text, "released recorder keeps nothing from before")
}

func TestRecorder_Errors(t *testing.T) {
	r := NewRecorder(transcript.FormatWebM, nil, nil, "c1", &captureSender{}, zerolog.Nop())
	assert.ErrorIs(t, r.Start(context.Background()), errNoTranscriber)

	out := &captureSender{}
	stt := &fakeSTT{err: errors.New("503")}
	r = NewRecorder(transcript.FormatWebM, stt, nil, "c1", out, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	r.Write([]byte("x"))
	_, err := r.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{msgError}, out.types())
}
