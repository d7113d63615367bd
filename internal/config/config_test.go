package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("LIVE_SETTLE_DELAY", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("expected default http address, got %q", cfg.HTTPAddress)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Live.SettleDelay != 500*time.Millisecond {
		t.Fatalf("expected 500ms settle delay, got %s", cfg.Live.SettleDelay)
	}
	if cfg.HeyGen.Avatar == "" || cfg.Supabase.Bucket != "voice-recording" {
		t.Fatalf("expected heygen and supabase defaults")
	}
}

func TestLoad_ProviderKeysFollowProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "cerebras")
	t.Setenv("CEREBRAS_API_KEY", "csk")
	t.Setenv("OPENAI_API_KEY", "osk")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("LLM_BASE_URL", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "csk" {
		t.Fatalf("expected cerebras key, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "https://api.cerebras.ai/v1" {
		t.Fatalf("unexpected base url %q", cfg.LLM.BaseURL)
	}
	if cfg.STT.APIKey != "osk" {
		t.Fatalf("whisper should use the openai key")
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "nope")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoad_ConfigFileBelowEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("HTTP_ADDRESS: \":9090\"\nTTS_VOICE: nova\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("TTS_VOICE", "shimmer")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress != ":9090" {
		t.Fatalf("expected file value, got %q", cfg.HTTPAddress)
	}
	if cfg.TTS.Voice != "shimmer" {
		t.Fatalf("expected env to win, got %q", cfg.TTS.Voice)
	}
}

func TestWarnings_MissingKeys(t *testing.T) {
	cfg := Config{LLM: LLMConfig{Provider: "openai"}, STT: STTConfig{Provider: "whisper"}, TTS: TTSConfig{Provider: "openai"}}
	if n := len(cfg.Warnings()); n != 5 {
		t.Fatalf("expected 5 warnings, got %d: %v", n, cfg.Warnings())
	}
}
