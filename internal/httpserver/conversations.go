package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jasir-pv/Ai-ChatBot/internal/store"
)

type titleRequest struct {
	Title *string `json:"title"`
}

func (r titleRequest) valid() (string, bool) {
	if r.Title == nil || strings.TrimSpace(*r.Title) == "" {
		return "", false
	}
	return strings.TrimSpace(*r.Title), true
}

func (h handlers) listConversations(c echo.Context) error {
	convs, err := h.Store.ListConversations(c.Request().Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("list conversations")
		return jsonError(c, http.StatusInternalServerError, "Failed to fetch conversations")
	}
	return c.JSON(http.StatusOK, convs)
}

func (h handlers) createConversation(c echo.Context) error {
	var req titleRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid title provided")
	}
	title, ok := req.valid()
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid title provided")
	}
	conv, err := h.Store.CreateConversation(c.Request().Context(), title)
	if err != nil {
		h.Log.Error().Err(err).Msg("create conversation")
		return jsonError(c, http.StatusInternalServerError, "Failed to create conversation")
	}
	return c.JSON(http.StatusCreated, conv)
}

func (h handlers) getConversation(c echo.Context) error {
	conv, err := h.Store.GetConversation(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "Conversation not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("get conversation")
		return jsonError(c, http.StatusInternalServerError, "Failed to fetch conversation")
	}
	return c.JSON(http.StatusOK, conv)
}

func (h handlers) updateConversation(c echo.Context) error {
	var req titleRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid title provided")
	}
	title, ok := req.valid()
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid title provided")
	}
	conv, err := h.Store.UpdateConversation(c.Request().Context(), c.Param("id"), title)
	if errors.Is(err, store.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "Conversation not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("update conversation")
		return jsonError(c, http.StatusInternalServerError, "Failed to update conversation")
	}
	return c.JSON(http.StatusOK, conv)
}

// deleteConversation is idempotent: deleting a missing conversation is a 204.
func (h handlers) deleteConversation(c echo.Context) error {
	err := h.Store.DeleteConversation(c.Request().Context(), c.Param("id"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.Log.Error().Err(err).Msg("delete conversation")
		return jsonError(c, http.StatusInternalServerError, "Failed to delete conversation")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) listMessages(c echo.Context) error {
	msgs, err := h.Store.ListMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.Log.Error().Err(err).Msg("list messages")
		return jsonError(c, http.StatusInternalServerError, "Failed to fetch messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h handlers) deleteMessage(c echo.Context) error {
	err := h.Store.DeleteMessage(c.Request().Context(), c.Param("id"), c.Param("messageId"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.Log.Error().Err(err).Msg("delete message")
		return jsonError(c, http.StatusInternalServerError, "Failed to delete message")
	}
	return c.NoContent(http.StatusNoContent)
}
