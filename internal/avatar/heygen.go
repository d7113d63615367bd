// Package avatar proxies the HeyGen streaming avatar API.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("heygen api key not configured")

// StatusError carries an upstream failure so handlers can relay its status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("heygen %s: status=%d body=%s", e.Op, e.Status, e.Body)
}

// Client talks to api.heygen.com.
type Client struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string
	Avatar     string
	Voice      string
}

func NewClient(apiKey, baseURL, avatarName, voice string) *Client {
	if baseURL == "" {
		baseURL = "https://api.heygen.com"
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Avatar:     avatarName,
		Voice:      voice,
	}
}

// Configured reports whether calls can succeed.
func (c *Client) Configured() bool { return c != nil && c.APIKey != "" }

func (c *Client) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("heygen %s: %w", op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("heygen %s: read: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("heygen %s: invalid json response", op)
	}
	return data, nil
}

// CreateToken returns a short-lived streaming token for the browser SDK.
func (c *Client) CreateToken(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, "create token", http.MethodPost, "/v1/streaming.create_token", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Error any `json:"error"`
		Data  struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("heygen create token: decode: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("heygen create token: %v", out.Error)
	}
	if out.Data.Token == "" {
		return "", errors.New("heygen create token: empty token")
	}
	return out.Data.Token, nil
}

// ListAvatars returns the upstream listing unchanged.
func (c *Client) ListAvatars(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "list avatars", http.MethodGet, "/v1/streaming/avatar.list", nil)
}

// NewSession creates a high quality session with the configured avatar and voice.
func (c *Client) NewSession(ctx context.Context) (json.RawMessage, error) {
	body := map[string]any{
		"quality":     "high",
		"avatar_name": c.Avatar,
		"voice":       map[string]string{"voice_id": c.Voice},
	}
	return c.do(ctx, "new session", http.MethodPost, "/v1/streaming.new", body)
}

// StartSession completes the WebRTC handshake with the client's SDP answer.
func (c *Client) StartSession(ctx context.Context, sessionID string, sdp json.RawMessage) (json.RawMessage, error) {
	body := map[string]any{"session_id": sessionID, "sdp": sdp}
	return c.do(ctx, "start session", http.MethodPost, "/v1/streaming.start", body)
}

// Speak queues text for the avatar to say.
func (c *Client) Speak(ctx context.Context, sessionID, text string) (json.RawMessage, error) {
	body := map[string]string{"session_id": sessionID, "text": text}
	return c.do(ctx, "speak", http.MethodPost, "/v1/streaming.task", body)
}

// Interrupt cuts off whatever the avatar is saying.
func (c *Client) Interrupt(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, "interrupt", http.MethodPost, "/v1/streaming.interrupt", map[string]string{"session_id": sessionID})
	return err
}

// StopSession closes the streaming session.
func (c *Client) StopSession(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, "stop", http.MethodPost, "/v1/streaming.stop", map[string]string{"session_id": sessionID})
	return err
}
