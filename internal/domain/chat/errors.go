package chat

import "errors"

var (
	// ErrContentPolicyViolation means the user text was flagged and the
	// exchange stopped before anything reached the model.
	ErrContentPolicyViolation = errors.New("content policy violation")

	// ErrNotAssistantMessage guards regeneration against non-assistant targets
	ErrNotAssistantMessage = errors.New("message is not an assistant message")

	// ErrNotUserMessage guards edits against non-user targets
	ErrNotUserMessage = errors.New("message is not a user message")

	// ErrEmptyContent rejects blank submissions before any side effect
	ErrEmptyContent = errors.New("message content is empty")
)
