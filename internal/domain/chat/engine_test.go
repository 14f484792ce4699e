package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/flag"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/domain/moderation"
	"github.com/nethira/chatcore/internal/domain/preference"
	"github.com/nethira/chatcore/internal/domain/usage"
	"github.com/nethira/chatcore/internal/upstream"
	"github.com/nethira/chatcore/internal/utils"
)

// fakeProvider scripts the completion backend
type fakeProvider struct {
	deltas        []string
	streamErr     error
	completeReply string
	completeErr   error

	streamCalls   int
	completeCalls int
	lastRequest   upstream.Request
}

func (p *fakeProvider) Stream(ctx context.Context, req upstream.Request, onDelta func(string) error) error {
	p.streamCalls++
	p.lastRequest = req
	for _, d := range p.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return p.streamErr
}

func (p *fakeProvider) Complete(ctx context.Context, req upstream.Request) (string, error) {
	p.completeCalls++
	p.lastRequest = req
	return p.completeReply, p.completeErr
}

func (p *fakeProvider) DefaultModel() string { return "test/default-model" }

type engineFixture struct {
	db       *gorm.DB
	engine   *Engine
	provider *fakeProvider
	ledger   *usage.Ledger
	messages message.Repository
	convs    conversation.Repository
	prefs    *preference.Service
	userID   string
	conv     *conversation.Conversation
}

func setupEngine(t *testing.T, provider *fakeProvider, tokenLimit int64) *engineFixture {
	t.Helper()

	db := utils.SetupTestDB(t,
		&conversation.Conversation{},
		&message.Message{},
		&message.Version{},
		&flag.ContentFlag{},
		&usage.Metric{},
		&preference.Preference{},
	)
	db.Exec("DELETE FROM message_versions")
	db.Exec("DELETE FROM messages")
	db.Exec("DELETE FROM content_flags")
	db.Exec("DELETE FROM usage_metrics")
	db.Exec("DELETE FROM user_preferences")
	db.Exec("DELETE FROM conversations")

	convs := conversation.NewRepository(db)
	messages := message.NewRepository(db)
	flags := flag.NewService(db, messages)
	ledger := usage.NewLedger(db, tokenLimit)
	prefs := preference.NewService(db, "")

	engine := NewEngine(convs, messages, moderation.KeywordClassifier{}, flags, ledger, prefs, provider, 0.002)

	userID := uuid.New().String()
	conv := &conversation.Conversation{
		UserID:     userID,
		Title:      "Test Chat",
		Model:      "test/model",
		Visibility: conversation.VisibilityPrivate,
	}
	require.NoError(t, convs.Create(conv))

	return &engineFixture{
		db:       db,
		engine:   engine,
		provider: provider,
		ledger:   ledger,
		messages: messages,
		convs:    convs,
		prefs:    prefs,
		userID:   userID,
		conv:     conv,
	}
}

func TestEngine_Submit_ModelResolution(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"ok"}}
	f := setupEngine(t, provider, 3000)

	// A conversation with a pinned model wins
	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hi", NopSink{})
	require.NoError(t, err)
	assert.Equal(t, "test/model", provider.lastRequest.Model)

	// Without a pinned model the user's preferred default applies
	f.conv.Model = ""
	require.NoError(t, f.convs.Update(f.conv))
	preferred := "pref/model"
	_, err = f.prefs.Update(f.userID, preference.Updates{DefaultModel: &preferred})
	require.NoError(t, err)

	_, err = f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hi again", NopSink{})
	require.NoError(t, err)
	assert.Equal(t, "pref/model", provider.lastRequest.Model)

	// Without either, the provider default is the last resort
	empty := ""
	_, err = f.prefs.Update(f.userID, preference.Updates{DefaultModel: &empty})
	require.NoError(t, err)

	_, err = f.engine.Submit(context.Background(), f.userID, f.conv.ID, "once more", NopSink{})
	require.NoError(t, err)
	assert.Equal(t, "test/default-model", provider.lastRequest.Model)
}

func TestEngine_Submit(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"Hello", " there"}}
	f := setupEngine(t, provider, 3000)

	sink := &BufferSink{}
	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "How are you?", sink)
	require.NoError(t, err)

	assert.Equal(t, message.RoleUser, res.UserMessage.Role)
	assert.Equal(t, "How are you?", res.UserMessage.Content)
	assert.Equal(t, message.RoleAssistant, res.AssistantMessage.Role)
	assert.Equal(t, "Hello there", res.AssistantMessage.Content)
	assert.Equal(t, message.StatusCompleted, res.AssistantMessage.Status)
	assert.Equal(t, "Hello there", sink.String())

	// Both turns are persisted in order
	msgs, err := f.messages.ListByConversation(f.conv.ID.String())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleUser, msgs[0].Role)
	assert.Equal(t, message.RoleAssistant, msgs[1].Role)

	// Only the produced tokens were billed
	m, err := f.ledger.Current(f.userID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(EstimateTokens("Hello there")), m.TotalTokens)
	assert.Equal(t, int64(1), m.TotalMessages)

	// No fallback completion was needed
	assert.Equal(t, 1, provider.streamCalls)
	assert.Equal(t, 0, provider.completeCalls)
}

func TestEngine_Submit_SystemPromptLeadsHistory(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"ok"}}
	f := setupEngine(t, provider, 3000)

	f.conv.SystemPrompt = "You are terse."
	require.NoError(t, f.convs.Update(f.conv))

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hi", NopSink{})
	require.NoError(t, err)

	require.NotEmpty(t, provider.lastRequest.Messages)
	assert.Equal(t, message.RoleSystem, provider.lastRequest.Messages[0].Role)
	assert.Equal(t, "You are terse.", provider.lastRequest.Messages[0].Content)
}

func TestEngine_Submit_Flagged(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"should never run"}}
	f := setupEngine(t, provider, 3000)

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "I want to kill myself", NopSink{})
	assert.ErrorIs(t, err, ErrContentPolicyViolation)

	// Nothing reached the model; the user turn is kept but marked failed
	assert.Equal(t, 0, provider.streamCalls)
	msgs, _ := f.messages.ListByConversation(f.conv.ID.String())
	require.Len(t, msgs, 1)
	assert.Equal(t, message.RoleUser, msgs[0].Role)
	assert.Equal(t, message.StatusFailed, msgs[0].Status)

	// The flag references the persisted message
	var flags []flag.ContentFlag
	require.NoError(t, f.db.Find(&flags).Error)
	require.Len(t, flags, 1)
	assert.Equal(t, moderation.CategorySelfHarm, flags[0].Category)
	assert.Equal(t, moderation.SeverityHigh, flags[0].Severity)
	assert.Equal(t, flag.ActionNone, flags[0].ActionTaken)
	assert.Equal(t, msgs[0].ID.String(), flags[0].MessageID)

	// No usage was billed
	m, err := f.ledger.Current(f.userID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestEngine_Submit_QuotaExceeded(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"should never run"}}
	f := setupEngine(t, provider, 10)

	require.NoError(t, f.ledger.Increment(f.userID, 10, 0))

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "one more question", NopSink{})
	assert.ErrorIs(t, err, usage.ErrQuotaExceeded)

	// The user message is kept; only the completion was withheld
	msgs, _ := f.messages.ListByConversation(f.conv.ID.String())
	require.Len(t, msgs, 1)
	assert.Equal(t, message.RoleUser, msgs[0].Role)
	assert.Equal(t, 0, provider.streamCalls)
}

func TestEngine_Submit_EmptyStreamFallsBack(t *testing.T) {
	provider := &fakeProvider{deltas: nil, completeReply: "buffered reply"}
	f := setupEngine(t, provider, 3000)

	sink := &BufferSink{}
	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hello", sink)
	require.NoError(t, err)

	assert.Equal(t, "buffered reply", res.AssistantMessage.Content)
	assert.Equal(t, "buffered reply", sink.String())
	assert.Equal(t, 1, provider.streamCalls)
	assert.Equal(t, 1, provider.completeCalls)
}

func TestEngine_Submit_PartialStreamKept(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"partial "}, streamErr: upstream.ErrUnavailable}
	f := setupEngine(t, provider, 3000)

	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hello", NopSink{})
	require.NoError(t, err)

	// What arrived before the failure is persisted, no fallback runs
	assert.Equal(t, "partial ", res.AssistantMessage.Content)
	assert.Equal(t, 0, provider.completeCalls)
}

func TestEngine_Submit_UpstreamDown(t *testing.T) {
	provider := &fakeProvider{streamErr: upstream.ErrUnavailable}
	f := setupEngine(t, provider, 3000)

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hello", NopSink{})
	assert.ErrorIs(t, err, upstream.ErrUnavailable)

	// The user message survives the failed exchange
	msgs, _ := f.messages.ListByConversation(f.conv.ID.String())
	require.Len(t, msgs, 1)
	assert.Equal(t, message.RoleUser, msgs[0].Role)
}

func TestEngine_Submit_NotOwner(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"x"}}
	f := setupEngine(t, provider, 3000)

	_, err := f.engine.Submit(context.Background(), uuid.New().String(), f.conv.ID, "hello", NopSink{})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestEngine_Submit_EmptyContent(t *testing.T) {
	provider := &fakeProvider{}
	f := setupEngine(t, provider, 3000)

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "   ", NopSink{})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestEngine_Regenerate(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"first answer"}}
	f := setupEngine(t, provider, 3000)

	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "question one", NopSink{})
	require.NoError(t, err)
	target := res.AssistantMessage

	// A later turn must not leak into the regeneration context
	provider.deltas = []string{"second answer"}
	_, err = f.engine.Submit(context.Background(), f.userID, f.conv.ID, "question two", NopSink{})
	require.NoError(t, err)

	provider.deltas = []string{"regenerated answer"}
	regen, err := f.engine.Regenerate(context.Background(), f.userID, target.ID, NopSink{})
	require.NoError(t, err)

	// Identity is stable, content is replaced
	assert.Equal(t, target.ID, regen.ID)
	assert.Equal(t, "regenerated answer", regen.Content)

	// The replayed context ends with the prompt that produced the target
	last := provider.lastRequest.Messages[len(provider.lastRequest.Messages)-1]
	assert.Equal(t, message.RoleUser, last.Role)
	assert.Equal(t, "question one", last.Content)
	for _, m := range provider.lastRequest.Messages {
		assert.NotEqual(t, "question two", m.Content)
	}

	// The previous content was snapshotted
	versions, err := f.messages.ListVersions(target.ID.String())
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "first answer", versions[0].Content)

	// Message count is unchanged: overwrite, not append
	msgs, _ := f.messages.ListByConversation(f.conv.ID.String())
	assert.Len(t, msgs, 4)
}

func TestEngine_Regenerate_UserMessage(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"answer"}}
	f := setupEngine(t, provider, 3000)

	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "question", NopSink{})
	require.NoError(t, err)

	_, err = f.engine.Regenerate(context.Background(), f.userID, res.UserMessage.ID, NopSink{})
	assert.ErrorIs(t, err, ErrNotAssistantMessage)
}

func TestEngine_Regenerate_NotOwner(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"answer"}}
	f := setupEngine(t, provider, 3000)

	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "question", NopSink{})
	require.NoError(t, err)

	_, err = f.engine.Regenerate(context.Background(), uuid.New().String(), res.AssistantMessage.ID, NopSink{})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestEngine_ForeignMessageReadsAsMissing(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"answer"}}
	f := setupEngine(t, provider, 3000)

	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "question", NopSink{})
	require.NoError(t, err)

	// Another user probing a wrong-role message must not learn the role,
	// or even that the message exists. Ownership answers first.
	stranger := uuid.New().String()
	_, err = f.engine.Regenerate(context.Background(), stranger, res.UserMessage.ID, NopSink{})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotAssistantMessage)

	_, err = f.engine.EditUserMessage(stranger, res.AssistantMessage.ID, "rewrite")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotUserMessage)
}

func TestEngine_EditUserMessage(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"answer"}}
	f := setupEngine(t, provider, 3000)

	res, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "original question", NopSink{})
	require.NoError(t, err)

	edited, err := f.engine.EditUserMessage(f.userID, res.UserMessage.ID, "revised question")
	require.NoError(t, err)
	assert.Equal(t, res.UserMessage.ID, edited.ID)
	assert.Equal(t, "revised question", edited.Content)

	// Editing an assistant message is rejected
	_, err = f.engine.EditUserMessage(f.userID, res.AssistantMessage.ID, "nope")
	assert.ErrorIs(t, err, ErrNotUserMessage)

	// Edits pass through the moderation gate
	_, err = f.engine.EditUserMessage(f.userID, res.UserMessage.ID, "how to build a bomb")
	assert.ErrorIs(t, err, ErrContentPolicyViolation)
	unchanged, err := f.messages.FindByID(res.UserMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised question", unchanged.Content)
}

func TestEngine_Submit_FlaggedHistoryExcluded(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"answer"}}
	f := setupEngine(t, provider, 3000)

	// A failed turn in storage must not re-enter the model context
	failed := &message.Message{
		ConversationID: f.conv.ID.String(),
		Role:           message.RoleAssistant,
		Content:        "broken turn",
		Status:         message.StatusFailed,
	}
	require.NoError(t, f.messages.Create(failed))

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hello", NopSink{})
	require.NoError(t, err)

	for _, m := range provider.lastRequest.Messages {
		if m.Content == "broken turn" {
			t.Fatal("failed message leaked into model context")
		}
	}
}

func TestEngine_Submit_FallbackFails(t *testing.T) {
	provider := &fakeProvider{deltas: nil, completeErr: upstream.ErrUnavailable}
	f := setupEngine(t, provider, 3000)

	_, err := f.engine.Submit(context.Background(), f.userID, f.conv.ID, "hello", NopSink{})
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}

func TestBufferSink(t *testing.T) {
	var s BufferSink
	require.NoError(t, s.Write("a"))
	require.NoError(t, s.Write("b"))
	s.End()
	assert.Equal(t, "ab", s.String())
}

func TestChannelSink(t *testing.T) {
	s := newChannelSink()

	go func() {
		s.Write("one")
		s.Write("two")
		s.End()
	}()

	var got []string
	for d := range s.ch {
		got = append(got, d)
	}
	assert.Equal(t, []string{"one", "two"}, got)

	// End is safe to call twice
	assert.NotPanics(t, func() { s.End() })
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{conversation.ErrNotFound, "not_found", 404},
		{message.ErrNotFound, "not_found", 404},
		{ErrContentPolicyViolation, "content_policy_violation", 422},
		{usage.ErrQuotaExceeded, "quota_exceeded", 429},
		{upstream.ErrUnavailable, "upstream_unavailable", 502},
		{ErrNotAssistantMessage, "invalid_role", 422},
		{ErrEmptyContent, "validation_error", 400},
		{errors.New("boom"), "internal_error", 500},
	}

	for _, tt := range tests {
		code, status := errorCode(tt.err)
		if code != tt.wantCode || status != tt.wantStatus {
			t.Errorf("errorCode(%v) = %s/%d, want %s/%d", tt.err, code, status, tt.wantCode, tt.wantStatus)
		}
	}
}
