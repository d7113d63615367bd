package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrMissingKey is returned when a transcriber has no credentials.
var ErrMissingKey = errors.New("transcript: api key missing")

// WhisperClient calls an OpenAI compatible /audio/transcriptions endpoint.
type WhisperClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	Language   string
	BaseURL    string
}

func NewWhisperClient(apiKey, model, language, baseURL string) *WhisperClient {
	if model == "" {
		model = "whisper-1"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &WhisperClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		Language:   language,
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingKey
	}
	if len(clip.Data) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", clip.Name())
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(clip.Encoded()); err != nil {
		return "", err
	}
	_ = mw.WriteField("model", c.Model)
	if c.Language != "" {
		_ = mw.WriteField("language", c.Language)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("whisper error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("whisper: decode: %w", err)
	}
	return strings.TrimSpace(wr.Text), nil
}
