package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/flag"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/domain/moderation"
	"github.com/nethira/chatcore/internal/domain/preference"
	"github.com/nethira/chatcore/internal/domain/usage"
	"github.com/nethira/chatcore/internal/upstream"
)

// Provider is the completion backend the engine relays through
type Provider interface {
	Stream(ctx context.Context, req upstream.Request, onDelta func(string) error) error
	Complete(ctx context.Context, req upstream.Request) (string, error)
	DefaultModel() string
}

// Engine runs the full exchange pipeline: moderation, persistence, quota,
// relay, finalize, billing. One engine serves all conversations.
type Engine struct {
	conversations conversation.Repository
	messages      message.Repository
	classifier    moderation.Classifier
	flags         *flag.Service
	ledger        *usage.Ledger
	prefs         *preference.Service
	provider      Provider
	costPer1K     float64
}

func NewEngine(
	conversations conversation.Repository,
	messages message.Repository,
	classifier moderation.Classifier,
	flags *flag.Service,
	ledger *usage.Ledger,
	prefs *preference.Service,
	provider Provider,
	costPer1K float64,
) *Engine {
	return &Engine{
		conversations: conversations,
		messages:      messages,
		classifier:    classifier,
		flags:         flags,
		ledger:        ledger,
		prefs:         prefs,
		provider:      provider,
		costPer1K:     costPer1K,
	}
}

// resolveModel picks the conversation's pinned model, then the user's
// preferred default, then the provider default.
func (e *Engine) resolveModel(userID string, conv *conversation.Conversation) string {
	if conv.Model != "" {
		return conv.Model
	}
	if e.prefs != nil {
		if m := e.prefs.DefaultModelFor(userID); m != "" {
			return m
		}
	}
	return e.provider.DefaultModel()
}

// Result is the persisted outcome of an exchange
type Result struct {
	UserMessage      *message.Message
	AssistantMessage *message.Message
}

// Submit runs one exchange. Ordering is load-bearing:
//
//  1. ownership check
//  2. moderation gate (the flagged user message is persisted as failed,
//     a flag row references it, nothing reaches the model)
//  3. persist the user message
//  4. quota check
//  5. relay the completion through the sink
//  6. finalize (fallback completion when the stream yielded nothing)
//  7. persist the assistant message, bump the conversation, bill usage
//
// The sink's End is called exactly once before Submit returns. Finalize
// runs detached from ctx so a client disconnect mid-stream cannot abort
// persistence of what was already produced.
func (e *Engine) Submit(ctx context.Context, userID string, conversationID uuid.UUID, content string, sink Sink) (*Result, error) {
	defer sink.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	conv, err := e.conversations.FindOwned(conversationID, userID)
	if err != nil {
		return nil, err
	}

	if verdict := e.classifier.Classify(content); verdict != nil {
		// The turn is kept for the record but marked failed so it never
		// re-enters the model context. No quota is consumed.
		flagged := &message.Message{
			ConversationID: conv.ID.String(),
			Role:           message.RoleUser,
			Content:        content,
			TokenCount:     EstimateTokens(content),
			Status:         message.StatusFailed,
		}
		if err := e.messages.Create(flagged); err != nil {
			return nil, err
		}
		if _, err := e.flags.Record(userID, conv.ID.String(), flagged.ID.String(), content, verdict); err != nil {
			slog.Error("failed to record content flag", "error", err)
		}
		return nil, ErrContentPolicyViolation
	}

	userMsg := &message.Message{
		ConversationID: conv.ID.String(),
		Role:           message.RoleUser,
		Content:        content,
		TokenCount:     EstimateTokens(content),
		Status:         message.StatusCompleted,
	}
	if err := e.messages.Create(userMsg); err != nil {
		return nil, err
	}

	// The user message persists even when the quota check fails, so the
	// turn is not lost; only the completion is withheld.
	if err := e.ledger.CheckLimit(userID); err != nil {
		return nil, err
	}

	msgs, err := e.messages.ListByConversation(conv.ID.String())
	if err != nil {
		return nil, err
	}

	model := e.resolveModel(userID, conv)
	req := upstream.Request{Model: model, Messages: buildHistory(conv, msgs)}

	started := time.Now()
	reply, streamErr := e.relay(ctx, req, sink)
	if streamErr != nil {
		// A broken stream degrades to the fallback call; whatever partial
		// content arrived is kept.
		slog.Warn("stream relay degraded", "error", streamErr)
	}

	// Finalization must survive client disconnects.
	finCtx := context.WithoutCancel(ctx)

	reply, err = e.finalize(finCtx, req, reply, sink)
	if err != nil {
		return nil, err
	}

	assistantMsg := &message.Message{
		ConversationID: conv.ID.String(),
		Role:           message.RoleAssistant,
		Content:        reply,
		TokenCount:     EstimateTokens(reply),
		LatencyMs:      time.Since(started).Milliseconds(),
		Status:         message.StatusCompleted,
		Model:          model,
	}
	if err := e.messages.Create(assistantMsg); err != nil {
		return nil, err
	}

	// Only produced tokens are billed
	e.finish(conv.ID, userID, assistantMsg.TokenCount)

	return &Result{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// relay streams the completion into the sink while accumulating the full
// reply for persistence. A mid-stream error after partial output is not
// fatal; whatever arrived is kept.
func (e *Engine) relay(ctx context.Context, req upstream.Request, sink Sink) (string, error) {
	var b strings.Builder
	err := e.provider.Stream(ctx, req, func(delta string) error {
		b.WriteString(delta)
		return sink.Write(delta)
	})
	return b.String(), err
}

// finalize guarantees a non-empty reply: an empty or whitespace-only
// accumulation triggers one buffered fallback completion before giving up.
// Only a failure of the fallback itself is fatal.
func (e *Engine) finalize(ctx context.Context, req upstream.Request, reply string, sink Sink) (string, error) {
	if strings.TrimSpace(reply) != "" {
		return reply, nil
	}

	reply, err := e.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", upstream.ErrUnavailable
	}
	if err := sink.Write(reply); err != nil {
		slog.Warn("sink rejected fallback content", "error", err)
	}
	return reply, nil
}

// finish applies the post-exchange bookkeeping. Both writes are best
// effort; the exchange itself already succeeded.
func (e *Engine) finish(conversationID uuid.UUID, userID string, tokens int) {
	if err := e.conversations.Touch(conversationID); err != nil {
		slog.Error("failed to touch conversation", "error", err)
	}
	if err := e.ledger.Increment(userID, int64(tokens), Cost(tokens, e.costPer1K)); err != nil {
		slog.Error("failed to record usage", "error", err)
	}
}
