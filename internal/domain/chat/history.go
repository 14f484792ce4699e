package chat

import (
	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/upstream"
)

// buildHistory assembles the model context for a conversation: the system
// prompt first when set, then every stored message in turn order. Failed
// messages are excluded so a blocked or errored turn never re-enters the
// context.
func buildHistory(conv *conversation.Conversation, msgs []message.Message) []upstream.ChatMessage {
	history := make([]upstream.ChatMessage, 0, len(msgs)+1)
	if conv.SystemPrompt != "" {
		history = append(history, upstream.ChatMessage{
			Role:    message.RoleSystem,
			Content: conv.SystemPrompt,
		})
	}
	for _, m := range msgs {
		if m.Status == message.StatusFailed {
			continue
		}
		history = append(history, upstream.ChatMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return history
}

// historyBefore is buildHistory truncated strictly before the target
// message. Regeneration replays the conversation as the model saw it at
// the moment the target was first produced.
func historyBefore(conv *conversation.Conversation, msgs []message.Message, targetID string) []upstream.ChatMessage {
	cut := len(msgs)
	for i, m := range msgs {
		if m.ID.String() == targetID {
			cut = i
			break
		}
	}
	return buildHistory(conv, msgs[:cut])
}
