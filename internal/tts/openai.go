package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Voices accepted by the OpenAI speech endpoint.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// DefaultVoice is used when the caller names none or an unknown one.
const DefaultVoice = "alloy"

// NormalizeVoice maps any input to a valid voice name.
func NormalizeVoice(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, ok := range Voices {
		if v == ok {
			return v
		}
	}
	return DefaultVoice
}

// OpenAIClient calls /audio/speech and returns mp3.
type OpenAIClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	Voice      string
	BaseURL    string
}

func NewOpenAIClient(apiKey, model, voice, baseURL string) *OpenAIClient {
	if model == "" {
		model = "tts-1"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		Voice:      NormalizeVoice(voice),
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (c *OpenAIClient) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	if c.APIKey == "" {
		return Audio{}, ErrMissingKey
	}
	if voice == "" {
		voice = c.Voice
	}
	body, _ := json.Marshal(speechRequest{
		Model:          c.Model,
		Input:          text,
		Voice:          NormalizeVoice(voice),
		ResponseFormat: "mp3",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Audio{}, fmt.Errorf("openai speech error: status=%d body=%s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("openai speech: read: %w", err)
	}
	return Audio{Data: data, MimeType: "audio/mpeg"}, nil
}
