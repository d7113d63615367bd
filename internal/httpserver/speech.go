package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
)

// maxUploadBytes matches the Whisper upload limit.
const maxUploadBytes = 25 << 20

// clipFormat picks the clip format from the upload's content type. Browser
// recordings are WebM; raw PCM must be declared explicitly.
func clipFormat(contentType string) transcript.Format {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/l16") {
		return transcript.FormatPCM16k
	}
	return transcript.FormatWebM
}

func (h handlers) speechToText(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "No audio file provided")
	}
	if fh.Size > maxUploadBytes {
		return jsonError(c, http.StatusRequestEntityTooLarge, "Audio file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "No audio file provided")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "Failed to read audio")
	}
	if h.STT == nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to transcribe audio")
	}

	format := clipFormat(fh.Header.Get(echo.HeaderContentType))
	clip := transcript.Clip{Data: data, Format: format}
	if format == transcript.FormatWebM {
		clip.Filename = "audio.webm"
	}
	ctx, cancel := requestTimeout(c, 60*time.Second)
	defer cancel()
	text, err := h.STT.Transcribe(ctx, clip)
	if err != nil {
		h.Log.Error().Err(err).Int("bytes", len(data)).Msg("speech-to-text failed")
		if errors.Is(err, transcript.ErrUnsupportedFormat) {
			return jsonError(c, http.StatusUnsupportedMediaType, "Unsupported audio format")
		}
		return jsonError(c, http.StatusInternalServerError, "Failed to transcribe audio")
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

type speechRequest struct {
	Text  *string `json:"text"`
	Voice string  `json:"voice"`
}

func (h handlers) textToSpeech(c echo.Context) error {
	var req speechRequest
	if err := c.Bind(&req); err != nil || req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		return jsonError(c, http.StatusBadRequest, "Invalid text provided")
	}
	if h.TTS == nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to generate speech")
	}
	voice := req.Voice
	if voice == "" {
		voice = h.Voice
	}
	ctx, cancel := requestTimeout(c, 60*time.Second)
	defer cancel()
	audio, err := h.TTS.Synthesize(ctx, *req.Text, voice)
	if err != nil {
		h.Log.Error().Err(err).Msg("text-to-speech failed")
		return jsonError(c, http.StatusInternalServerError, "Failed to generate speech")
	}
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(audio.Data)))
	return c.Blob(http.StatusOK, audio.MimeType, audio.Data)
}
