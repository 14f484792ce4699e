package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/upstream"
)

// findOwnedMessage resolves a message through its conversation's owner. A
// foreign message ID reads the same as an unknown one, so callers learn
// nothing about messages they cannot see.
func (e *Engine) findOwnedMessage(messageID uuid.UUID, userID string) (*message.Message, *conversation.Conversation, error) {
	target, err := e.messages.FindByID(messageID)
	if err != nil {
		return nil, nil, err
	}

	convID, err := uuid.Parse(target.ConversationID)
	if err != nil {
		return nil, nil, message.ErrNotFound
	}
	conv, err := e.conversations.FindOwned(convID, userID)
	if err != nil {
		return nil, nil, err
	}
	return target, conv, nil
}

// Regenerate re-runs the completion that produced an assistant message and
// overwrites it in place. The message keeps its ID so client references
// stay stable; the previous content is snapshotted as a Version first.
// The replayed context is the conversation strictly before the target.
func (e *Engine) Regenerate(ctx context.Context, userID string, messageID uuid.UUID, sink Sink) (*message.Message, error) {
	defer sink.End()

	target, conv, err := e.findOwnedMessage(messageID, userID)
	if err != nil {
		return nil, err
	}
	if target.Role != message.RoleAssistant {
		return nil, ErrNotAssistantMessage
	}

	msgs, err := e.messages.ListByConversation(conv.ID.String())
	if err != nil {
		return nil, err
	}

	model := e.resolveModel(userID, conv)
	req := upstream.Request{Model: model, Messages: historyBefore(conv, msgs, target.ID.String())}

	started := time.Now()
	reply, streamErr := e.relay(ctx, req, sink)
	if streamErr != nil {
		slog.Warn("stream relay degraded", "error", streamErr)
	}

	finCtx := context.WithoutCancel(ctx)

	reply, err = e.finalize(finCtx, req, reply, sink)
	if err != nil {
		return nil, err
	}

	// Snapshot before overwrite so no produced content is ever lost
	version := &message.Version{
		MessageID:  target.ID.String(),
		Content:    target.Content,
		Model:      target.Model,
		TokenCount: target.TokenCount,
	}
	if err := e.messages.CreateVersion(version); err != nil {
		return nil, err
	}

	target.Content = reply
	target.TokenCount = EstimateTokens(reply)
	target.LatencyMs = time.Since(started).Milliseconds()
	target.Status = message.StatusCompleted
	target.Model = model
	if err := e.messages.Update(target); err != nil {
		return nil, err
	}

	e.finish(conv.ID, userID, target.TokenCount)

	return target, nil
}

// EditUserMessage replaces a user message's content in place after the
// moderation gate. The edit does not re-run any completion; subsequent
// regenerations will see the new content.
func (e *Engine) EditUserMessage(userID string, messageID uuid.UUID, content string) (*message.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	target, conv, err := e.findOwnedMessage(messageID, userID)
	if err != nil {
		return nil, err
	}
	if target.Role != message.RoleUser {
		return nil, ErrNotUserMessage
	}

	if verdict := e.classifier.Classify(content); verdict != nil {
		if _, recErr := e.flags.Record(userID, conv.ID.String(), target.ID.String(), content, verdict); recErr != nil {
			return nil, recErr
		}
		return nil, ErrContentPolicyViolation
	}

	target.Content = content
	target.TokenCount = EstimateTokens(content)
	if err := e.messages.Update(target); err != nil {
		return nil, err
	}
	return target, nil
}
