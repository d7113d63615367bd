// Package audio holds small helpers for raw 16-bit PCM.
package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// SampleRate16k is the microphone rate used for raw PCM capture.
const SampleRate16k = 16000

// VoiceRMS is the energy above which a PCM frame counts as speech.
const VoiceRMS = 250.0

// WAV wraps mono 16-bit PCM in a RIFF header.
func WAV(pcm []byte, sampleRate int) []byte {
	const channels, bits = 1, 16
	var b bytes.Buffer
	b.Grow(44 + len(pcm))
	le := binary.LittleEndian
	b.WriteString("RIFF")
	_ = binary.Write(&b, le, uint32(36+len(pcm)))
	b.WriteString("WAVEfmt ")
	_ = binary.Write(&b, le, uint32(16))
	_ = binary.Write(&b, le, uint16(1)) // PCM
	_ = binary.Write(&b, le, uint16(channels))
	_ = binary.Write(&b, le, uint32(sampleRate))
	_ = binary.Write(&b, le, uint32(sampleRate*channels*bits/8))
	_ = binary.Write(&b, le, uint16(channels*bits/8))
	_ = binary.Write(&b, le, uint16(bits))
	b.WriteString("data")
	_ = binary.Write(&b, le, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

// RMS computes the root mean square of 16-bit little-endian PCM.
// Long buffers are sampled sparsely.
func RMS(pcm []byte) float64 {
	step := 1
	if len(pcm) > 3200 {
		step = 2
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSquares / float64(count))
}

// HasVoice reports whether any 10ms frame of 16 kHz pcm carries speech energy.
func HasVoice(pcm []byte) bool {
	const frame = SampleRate16k / 100 * 2
	if len(pcm) < frame {
		return false
	}
	for off := 0; off+frame <= len(pcm); off += frame {
		if RMS(pcm[off:off+frame]) >= VoiceRMS {
			return true
		}
	}
	return false
}
