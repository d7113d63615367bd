// Package store persists conversations and their messages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a conversation or message does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned for input the schema rejects.
var ErrInvalid = errors.New("invalid input")

// Message roles accepted by the schema.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NewMessage is the input to CreateMessage.
type NewMessage struct {
	ConversationID string
	Role           string
	Content        string
	Metadata       json.RawMessage
}

// Store is implemented by the Postgres and in-memory backends.
type Store interface {
	CreateConversation(ctx context.Context, title string) (Conversation, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
	// ListConversations returns the most recently updated first.
	ListConversations(ctx context.Context) ([]Conversation, error)
	// UpdateConversation renames a conversation and bumps its updated time.
	UpdateConversation(ctx context.Context, id, title string) (Conversation, error)
	// DeleteConversation removes a conversation and its messages. Missing ids are not an error.
	DeleteConversation(ctx context.Context, id string) error

	// CreateMessage appends a message and bumps the conversation's updated time.
	CreateMessage(ctx context.Context, m NewMessage) (Message, error)
	// ListMessages returns a conversation's messages oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	DeleteMessage(ctx context.Context, conversationID, id string) error

	Close()
}

func validate(m NewMessage) error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return ErrInvalid
	}
	if len(m.Metadata) > 0 && !json.Valid(m.Metadata) {
		return ErrInvalid
	}
	return nil
}
