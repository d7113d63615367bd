// Package llm talks to chat completion backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingKey is returned when a client is used without credentials.
var ErrMissingKey = errors.New("llm: api key missing")

// Role values used in Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion. Zero values fall back to client defaults.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// DefaultOptions matches the chat endpoint's historical settings.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, MaxTokens: 2000}
}

// Client produces assistant replies.
type Client interface {
	// Complete returns the whole reply.
	Complete(ctx context.Context, msgs []Message, opts Options) (string, error)
	// Stream calls onDelta for each fragment and returns the concatenated reply.
	// An error from onDelta aborts the stream.
	Stream(ctx context.Context, msgs []Message, opts Options, onDelta func(string) error) (string, error)
}

// New returns the client for a provider name.
func New(provider, apiKey, model, baseURL string) (Client, error) {
	switch strings.ToLower(provider) {
	case "openai", "cerebras", "":
		return NewChatClient(apiKey, model, baseURL), nil
	case "gemini":
		c := NewGeminiClient(apiKey, model)
		c.BaseURL = baseURL
		return c, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
