package main

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/avatar"
	"github.com/jasir-pv/Ai-ChatBot/internal/config"
	"github.com/jasir-pv/Ai-ChatBot/internal/infra/storage"
	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
	"github.com/jasir-pv/Ai-ChatBot/internal/tts"
)

// newTranscriber picks the STT backend. AssemblyAI only accepts raw PCM, so
// browser recordings still go to Whisper when an OpenAI key is present.
func newTranscriber(cfg config.Config, log zerolog.Logger) transcript.Transcriber {
	var batch transcript.Transcriber
	if cfg.STT.APIKey != "" || cfg.STT.Provider != "assemblyai" {
		batch = transcript.NewWhisperClient(cfg.STT.APIKey, cfg.STT.Model, cfg.STT.Language, cfg.STT.BaseURL)
	}
	if cfg.STT.Provider == "assemblyai" {
		return transcript.ByFormat{
			PCM:     transcript.NewAssemblyAI(cfg.STT.AssemblyAIKey, log),
			Default: batch,
		}
	}
	return batch
}

func newSynthesizer(cfg config.Config) tts.Synthesizer {
	switch cfg.TTS.Provider {
	case "elevenlabs":
		return tts.NewElevenLabsClient(cfg.TTS.ElevenLabsKey, cfg.TTS.ElevenLabsVoiceID)
	case "deepgram":
		return tts.NewDeepgramClient(cfg.TTS.DeepgramKey, cfg.TTS.DeepgramModel)
	default:
		return tts.NewOpenAIClient(cfg.TTS.OpenAIKey, cfg.TTS.Model, cfg.TTS.Voice, cfg.TTS.BaseURL)
	}
}

// newAvatar always returns a client; without a key every call reports
// avatar.ErrNotConfigured.
func newAvatar(cfg config.Config) *avatar.Client {
	return avatar.NewClient(cfg.HeyGen.APIKey, cfg.HeyGen.BaseURL, cfg.HeyGen.Avatar, cfg.HeyGen.Voice)
}

// newArchive returns nil when recordings should not be kept.
func newArchive(cfg config.Config, log zerolog.Logger) storage.Archive {
	s, err := storage.NewSupabaseStorage(storage.Config{
		URL:            cfg.Supabase.URL,
		ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
		Bucket:         cfg.Supabase.Bucket,
	})
	if errors.Is(err, storage.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("recording archive disabled")
		return nil
	}
	log.Info().Str("bucket", cfg.Supabase.Bucket).Msg("archiving live recordings")
	return s
}
