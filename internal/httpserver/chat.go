package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jasir-pv/Ai-ChatBot/internal/llm"
	"github.com/jasir-pv/Ai-ChatBot/internal/store"
)

type chatRequest struct {
	Messages       []llm.Message `json:"messages"`
	ConversationID string        `json:"conversationId"`
}

func validHistory(msgs []llm.Message) bool {
	if len(msgs) == 0 {
		return false
	}
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			return false
		}
	}
	return true
}

// chat streams the reply as plain text chunks. Status and headers go out with
// the first chunk; a failure before it is a JSON error.
func (h handlers) chat(c echo.Context) error {
	if h.Chat == nil {
		return jsonError(c, http.StatusInternalServerError, "Chat is not configured")
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil || !validHistory(req.Messages) {
		return jsonError(c, http.StatusBadRequest, "Invalid messages format")
	}

	res := c.Response()
	started := false
	_, err := h.Chat.Stream(c.Request().Context(), req.ConversationID, req.Messages, func(delta string) error {
		if !started {
			res.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
			res.Header().Set("Cache-Control", "no-cache")
			res.Header().Set("X-Accel-Buffering", "no")
			res.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := res.Write([]byte(delta)); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err == nil {
		if !started {
			return c.NoContent(http.StatusOK)
		}
		return nil
	}

	h.Log.Error().Err(err).Str("conversation", req.ConversationID).Msg("chat stream failed")
	if started {
		// Headers are gone; the client sees a truncated stream.
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "Conversation not found")
	}
	return jsonError(c, http.StatusInternalServerError, "Internal server error")
}
