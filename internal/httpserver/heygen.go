package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jasir-pv/Ai-ChatBot/internal/avatar"
)

type heygenRequest struct {
	SessionID string          `json:"session_id"`
	SDP       json.RawMessage `json:"sdp"`
	Text      string          `json:"text"`
}

// heygenError relays upstream failures with their status and hides
// everything else behind a 500.
func (h handlers) heygenError(c echo.Context, err error, msg string) error {
	h.Log.Error().Err(err).Msg(msg)
	if errors.Is(err, avatar.ErrNotConfigured) {
		return jsonError(c, http.StatusInternalServerError, "HeyGen API key not configured")
	}
	var se *avatar.StatusError
	if errors.As(err, &se) {
		return c.JSON(se.Status, map[string]string{"error": msg, "details": se.Body})
	}
	return jsonError(c, http.StatusInternalServerError, "Internal server error")
}

func (h handlers) notConfigured(c echo.Context) error {
	return jsonError(c, http.StatusInternalServerError, "HeyGen API key not configured")
}

func (h handlers) bindSession(c echo.Context, needSDP, needText bool) (heygenRequest, bool) {
	var req heygenRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return req, false
	}
	if needSDP && (len(req.SDP) == 0 || string(req.SDP) == "null") {
		return req, false
	}
	if needText && req.Text == "" {
		return req, false
	}
	return req, true
}

func (h handlers) heygenCreateToken(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	token, err := h.Avatar.CreateToken(c.Request().Context())
	if err != nil {
		return h.heygenError(c, err, "Failed to create streaming token")
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (h handlers) heygenListAvatars(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	raw, err := h.Avatar.ListAvatars(c.Request().Context())
	if err != nil {
		return h.heygenError(c, err, "Failed to list avatars")
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h handlers) heygenCreateSession(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	raw, err := h.Avatar.NewSession(c.Request().Context())
	if err != nil {
		return h.heygenError(c, err, "Failed to create HeyGen session")
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h handlers) heygenStartSession(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	req, ok := h.bindSession(c, true, false)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Missing session_id or sdp")
	}
	raw, err := h.Avatar.StartSession(c.Request().Context(), req.SessionID, req.SDP)
	if err != nil {
		return h.heygenError(c, err, "Failed to start session")
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h handlers) heygenSpeak(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	req, ok := h.bindSession(c, false, true)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Missing session_id or text")
	}
	raw, err := h.Avatar.Speak(c.Request().Context(), req.SessionID, req.Text)
	if err != nil {
		return h.heygenError(c, err, "Failed to make avatar speak")
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h handlers) heygenInterrupt(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	req, ok := h.bindSession(c, false, false)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Missing session_id")
	}
	if err := h.Avatar.Interrupt(c.Request().Context(), req.SessionID); err != nil {
		return h.heygenError(c, err, "Failed to interrupt avatar")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) heygenStopSession(c echo.Context) error {
	if h.Avatar == nil {
		return h.notConfigured(c)
	}
	req, ok := h.bindSession(c, false, false)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Missing session_id")
	}
	if err := h.Avatar.StopSession(c.Request().Context(), req.SessionID); err != nil {
		return h.heygenError(c, err, "Failed to stop session")
	}
	return c.NoContent(http.StatusNoContent)
}
