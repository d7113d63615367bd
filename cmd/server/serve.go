package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/agent"
	"github.com/jasir-pv/Ai-ChatBot/internal/chat"
	"github.com/jasir-pv/Ai-ChatBot/internal/config"
	"github.com/jasir-pv/Ai-ChatBot/internal/httpserver"
	"github.com/jasir-pv/Ai-ChatBot/internal/llm"
	"github.com/jasir-pv/Ai-ChatBot/internal/logging"
	"github.com/jasir-pv/Ai-ChatBot/internal/store"
	"github.com/jasir-pv/Ai-ChatBot/internal/voice"
)

func loadConfig(configFile string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, log, nil
}

// openStore returns Postgres when DATABASE_URL is set and an in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemory(), nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	n, err := pg.Migrate(ctx)
	if err != nil {
		pg.Close()
		return nil, err
	}
	log.Info().Int("applied", n).Msg("database ready")
	return pg, nil
}

func runServe(ctx context.Context, configFile string) error {
	cfg, log, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	model, err := llm.New(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	if err != nil {
		return err
	}
	chatSvc := chat.NewService(model, st, llm.DefaultOptions(), logging.Component(log, "chat"))
	stt := newTranscriber(cfg, logging.Component(log, "stt"))
	synth := newSynthesizer(cfg)
	heygen := newAvatar(cfg)
	archive := newArchive(cfg, log)

	liveDeps := voice.Deps{
		Chat:    chatSvc,
		Store:   st,
		STT:     stt,
		TTS:     synth,
		Archive: archive,
		Agent: agent.Config{
			SettleDelay: cfg.Live.SettleDelay,
			CallTimeout: cfg.Live.CallTimeout,
		},
		Voice: cfg.TTS.Voice,
		Log:   logging.Component(log, "live"),
	}
	if heygen.Configured() {
		liveDeps.Avatar = heygen
	}

	e := httpserver.New(httpserver.Deps{
		Chat:     chatSvc,
		Store:    st,
		STT:      stt,
		TTS:      synth,
		Avatar:   heygen,
		Live:     voice.NewHandler(liveDeps),
		Voice:    cfg.TTS.Voice,
		APIToken: cfg.APIToken,
		Log:      logging.Component(log, "http"),
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Str("llm", cfg.LLM.Provider).
			Str("stt", cfg.STT.Provider).Str("tts", cfg.TTS.Provider).Msg("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
	return nil
}

func runMigrate(ctx context.Context, configFile string) error {
	cfg, log, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	n, err := pg.Migrate(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("applied", n).Msg("migrations complete")
	return nil
}
