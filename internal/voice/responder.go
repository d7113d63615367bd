package voice

import (
	"context"
)

// Replier produces a reply for a conversation, streaming deltas.
type Replier interface {
	Reply(ctx context.Context, conversationID, text string, onDelta func(string) error) (string, error)
}

// Responder forwards transcripts to the chat service and streams the reply
// text to the client as it arrives.
type Responder struct {
	chat           Replier
	conversationID string
	out            sender
}

func NewResponder(chat Replier, conversationID string, out sender) *Responder {
	return &Responder{chat: chat, conversationID: conversationID, out: out}
}

func (r *Responder) Send(ctx context.Context, text string) (string, error) {
	reply, err := r.chat.Reply(ctx, r.conversationID, text, func(delta string) error {
		r.out.sendJSON(textMessage{Type: msgReplyDelta, Text: delta})
		return nil
	})
	if err != nil && ctx.Err() == nil {
		r.out.sendJSON(errorMessage{Type: msgError, Message: "assistant reply failed"})
	}
	return reply, err
}
