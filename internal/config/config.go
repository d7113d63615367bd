package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	APIToken    string
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	LLM      LLMConfig
	STT      STTConfig
	TTS      TTSConfig
	HeyGen   HeyGenConfig
	Supabase SupabaseConfig
	Live     LiveConfig
}

// LLMConfig selects the chat completion backend.
type LLMConfig struct {
	Provider string // openai, cerebras, gemini
	Model    string
	BaseURL  string
	APIKey   string
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	Provider      string // whisper, assemblyai
	Model         string
	Language      string
	BaseURL       string
	APIKey        string
	AssemblyAIKey string
}

// TTSConfig selects the speech synthesis backend.
type TTSConfig struct {
	Provider          string // openai, elevenlabs, deepgram
	Model             string
	Voice             string
	BaseURL           string
	OpenAIKey         string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string
	DeepgramModel     string
}

// HeyGenConfig configures the streaming avatar proxy.
type HeyGenConfig struct {
	APIKey  string
	BaseURL string
	Avatar  string
	Voice   string
}

// SupabaseConfig configures the recording archive bucket.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// LiveConfig tunes the live conversation loop.
type LiveConfig struct {
	SettleDelay time.Duration
	CallTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("STT_PROVIDER", "whisper")
	v.SetDefault("STT_MODEL", "whisper-1")
	v.SetDefault("STT_LANGUAGE", "en")
	v.SetDefault("STT_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("TTS_PROVIDER", "openai")
	v.SetDefault("TTS_MODEL", "tts-1")
	v.SetDefault("TTS_VOICE", "alloy")
	v.SetDefault("TTS_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("DEEPGRAM_MODEL", "aura-2-thalia-en")

	v.SetDefault("HEYGEN_BASE_URL", "https://api.heygen.com")
	v.SetDefault("HEYGEN_AVATAR", "josh_lite3_20230714")
	v.SetDefault("HEYGEN_VOICE", "en-US-JennyNeural")

	v.SetDefault("SUPABASE_BUCKET", "voice-recording")

	v.SetDefault("LIVE_SETTLE_DELAY", 500*time.Millisecond)
	v.SetDefault("LIVE_CALL_TIMEOUT", 60*time.Second)
}

var llmDefaults = map[string]struct{ baseURL, model, keyVar string }{
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini", "OPENAI_API_KEY"},
	"cerebras": {"https://api.cerebras.ai/v1", "gpt-oss-120b", "CEREBRAS_API_KEY"},
	"gemini":   {"", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Load reads .env (if present), the optional config file, and the environment.
// Environment variables win over the file; the file wins over defaults.
func Load(configFile string) (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	provider := strings.ToLower(v.GetString("LLM_PROVIDER"))
	def, ok := llmDefaults[provider]
	if !ok {
		return Config{}, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
	}

	cfg := Config{
		HTTPAddress: v.GetString("HTTP_ADDRESS"),
		APIToken:    v.GetString("API_TOKEN"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
		LLM: LLMConfig{
			Provider: provider,
			Model:    firstNonEmpty(v.GetString("LLM_MODEL"), def.model),
			BaseURL:  firstNonEmpty(v.GetString("LLM_BASE_URL"), def.baseURL),
			APIKey:   v.GetString(def.keyVar),
		},
		STT: STTConfig{
			Provider:      strings.ToLower(v.GetString("STT_PROVIDER")),
			Model:         v.GetString("STT_MODEL"),
			Language:      v.GetString("STT_LANGUAGE"),
			BaseURL:       v.GetString("STT_BASE_URL"),
			APIKey:        v.GetString("OPENAI_API_KEY"),
			AssemblyAIKey: v.GetString("ASSEMBLYAI_API_KEY"),
		},
		TTS: TTSConfig{
			Provider:          strings.ToLower(v.GetString("TTS_PROVIDER")),
			Model:             v.GetString("TTS_MODEL"),
			Voice:             v.GetString("TTS_VOICE"),
			BaseURL:           v.GetString("TTS_BASE_URL"),
			OpenAIKey:         v.GetString("OPENAI_API_KEY"),
			ElevenLabsKey:     v.GetString("ELEVENLABS_API_KEY"),
			ElevenLabsVoiceID: v.GetString("ELEVENLABS_VOICE_ID"),
			DeepgramKey:       v.GetString("DEEPGRAM_API_KEY"),
			DeepgramModel:     v.GetString("DEEPGRAM_MODEL"),
		},
		HeyGen: HeyGenConfig{
			APIKey:  v.GetString("HEYGEN_API_KEY"),
			BaseURL: v.GetString("HEYGEN_BASE_URL"),
			Avatar:  v.GetString("HEYGEN_AVATAR"),
			Voice:   v.GetString("HEYGEN_VOICE"),
		},
		Supabase: SupabaseConfig{
			URL:            v.GetString("SUPABASE_URL"),
			ServiceRoleKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
			Bucket:         v.GetString("SUPABASE_BUCKET"),
		},
		Live: LiveConfig{
			SettleDelay: v.GetDuration("LIVE_SETTLE_DELAY"),
			CallTimeout: v.GetDuration("LIVE_CALL_TIMEOUT"),
		},
	}
	return cfg, nil
}

// Warnings lists features that will not work with this configuration.
// Missing keys are not fatal: the affected endpoints fail per request.
func (c Config) Warnings() []string {
	var w []string
	if c.LLM.APIKey == "" {
		w = append(w, fmt.Sprintf("%s API key not set - chat will not work", c.LLM.Provider))
	}
	switch c.STT.Provider {
	case "assemblyai":
		if c.STT.AssemblyAIKey == "" {
			w = append(w, "ASSEMBLYAI_API_KEY not set - transcription will not work")
		}
	default:
		if c.STT.APIKey == "" {
			w = append(w, "OPENAI_API_KEY not set - transcription will not work")
		}
	}
	switch c.TTS.Provider {
	case "elevenlabs":
		if c.TTS.ElevenLabsKey == "" || c.TTS.ElevenLabsVoiceID == "" {
			w = append(w, "ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set - speech will not work")
		}
	case "deepgram":
		if c.TTS.DeepgramKey == "" {
			w = append(w, "DEEPGRAM_API_KEY not set - speech will not work")
		}
	default:
		if c.TTS.OpenAIKey == "" {
			w = append(w, "OPENAI_API_KEY not set - speech will not work")
		}
	}
	if c.HeyGen.APIKey == "" {
		w = append(w, "HEYGEN_API_KEY not set - avatar endpoints disabled")
	}
	if c.DatabaseURL == "" {
		w = append(w, "DATABASE_URL not set - conversations are kept in memory")
	}
	return w
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
