// Package httpserver exposes the chat, speech, avatar and live-mode API.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/llm"
	"github.com/jasir-pv/Ai-ChatBot/internal/middleware"
	"github.com/jasir-pv/Ai-ChatBot/internal/store"
	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
	"github.com/jasir-pv/Ai-ChatBot/internal/tts"
)

// Chatter streams a reply for a message history.
type Chatter interface {
	Stream(ctx context.Context, conversationID string, history []llm.Message, onDelta func(string) error) (string, error)
}

// Avatar is the HeyGen proxy surface.
type Avatar interface {
	CreateToken(ctx context.Context) (string, error)
	ListAvatars(ctx context.Context) (json.RawMessage, error)
	NewSession(ctx context.Context) (json.RawMessage, error)
	StartSession(ctx context.Context, sessionID string, sdp json.RawMessage) (json.RawMessage, error)
	Speak(ctx context.Context, sessionID, text string) (json.RawMessage, error)
	Interrupt(ctx context.Context, sessionID string) error
	StopSession(ctx context.Context, sessionID string) error
}

// Deps are the collaborators behind the routes. Nil providers make their
// routes answer 500 with a configuration error.
type Deps struct {
	Chat     Chatter
	Store    store.Store
	STT      transcript.Transcriber
	TTS      tts.Synthesizer
	Avatar   Avatar
	Live     http.Handler
	Voice    string
	APIToken string
	Log      zerolog.Logger
}

type handlers struct {
	Deps
}

// New creates a configured Echo server instance.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(deps.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Auth-Token"},
	}))
	e.Use(echomw.BodyLimit("30M"))

	h := handlers{Deps: deps}
	h.register(e)
	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("path", v.URIPath).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	})
}

func (h handlers) register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := e.Group("/api", middleware.TokenAuth(h.APIToken))

	api.GET("/conversations", h.listConversations)
	api.POST("/conversations", h.createConversation)
	api.GET("/conversations/:id", h.getConversation)
	api.PATCH("/conversations/:id", h.updateConversation)
	api.DELETE("/conversations/:id", h.deleteConversation)
	api.GET("/conversations/:id/messages", h.listMessages)
	api.DELETE("/conversations/:id/messages/:messageId", h.deleteMessage)

	api.POST("/chat", h.chat)
	api.POST("/speech-to-text", h.speechToText)
	api.POST("/text-to-speech", h.textToSpeech)

	api.POST("/heygen/create-token", h.heygenCreateToken)
	api.GET("/heygen/list-avatars", h.heygenListAvatars)
	api.POST("/heygen/create-session", h.heygenCreateSession)
	api.POST("/heygen/start-session", h.heygenStartSession)
	api.POST("/heygen/speak", h.heygenSpeak)
	api.POST("/heygen/interrupt", h.heygenInterrupt)
	api.POST("/heygen/stop-session", h.heygenStopSession)

	if h.Live != nil {
		api.GET("/live", echo.WrapHandler(h.Live))
	}
}

// jsonError writes the {"error": ...} body every route uses.
func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func requestTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
