// Package chat runs a conversation turn: persist the user message, stream
// the model's reply, persist the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/llm"
	"github.com/jasir-pv/Ai-ChatBot/internal/store"
)

// VoicePrompt keeps live replies short enough to speak.
const VoicePrompt = "You are a helpful, concise voice AI agent. Answer clearly and briefly, " +
	"in plain sentences without markdown, lists or code blocks."

// HistoryLimit bounds how many stored messages are replayed to the model.
const HistoryLimit = 40

// ErrEmptyHistory is returned when there is nothing to answer.
var ErrEmptyHistory = errors.New("chat: no messages")

type Service struct {
	llm   llm.Client
	store store.Store
	opts  llm.Options
	log   zerolog.Logger
}

func NewService(client llm.Client, st store.Store, opts llm.Options, log zerolog.Logger) *Service {
	return &Service{llm: client, store: st, opts: opts, log: log}
}

// Store exposes the backing store to transports that manage conversations.
func (s *Service) Store() store.Store { return s.store }

// Stream answers history. When conversationID is set, a trailing user message
// is stored before the model is called and a non-empty reply after it completes.
func (s *Service) Stream(ctx context.Context, conversationID string, history []llm.Message, onDelta func(string) error) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}
	last := history[len(history)-1]
	if conversationID != "" && last.Role == llm.RoleUser {
		if _, err := s.store.CreateMessage(ctx, store.NewMessage{
			ConversationID: conversationID,
			Role:           store.RoleUser,
			Content:        last.Content,
		}); err != nil {
			return "", fmt.Errorf("save user message: %w", err)
		}
	}

	reply, err := s.llm.Stream(ctx, history, s.opts, onDelta)
	if err != nil {
		return reply, fmt.Errorf("llm stream: %w", err)
	}
	reply = strings.TrimSpace(reply)

	if conversationID != "" && reply != "" {
		// The caller may already be gone; the reply still belongs to the conversation.
		if _, err := s.store.CreateMessage(context.WithoutCancel(ctx), store.NewMessage{
			ConversationID: conversationID,
			Role:           store.RoleAssistant,
			Content:        reply,
		}); err != nil {
			return reply, fmt.Errorf("save assistant message: %w", err)
		}
	}
	s.log.Debug().Str("conversation", conversationID).Int("reply_len", len(reply)).Msg("chat turn complete")
	return reply, nil
}

// Reply answers text in the context of a stored conversation using the voice prompt.
func (s *Service) Reply(ctx context.Context, conversationID, text string, onDelta func(string) error) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyHistory
	}
	history := []llm.Message{{Role: llm.RoleSystem, Content: VoicePrompt}}
	if conversationID != "" {
		stored, err := s.store.ListMessages(ctx, conversationID)
		if err != nil {
			return "", fmt.Errorf("load history: %w", err)
		}
		if len(stored) > HistoryLimit {
			stored = stored[len(stored)-HistoryLimit:]
		}
		for _, m := range stored {
			history = append(history, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: text})
	return s.Stream(ctx, conversationID, history, onDelta)
}
