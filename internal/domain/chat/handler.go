package chat

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/nethira/chatcore/internal/domain/auth"
	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/domain/usage"
	"github.com/nethira/chatcore/internal/upstream"
	"github.com/nethira/chatcore/internal/utils"
)

type Handler struct {
	engine        *Engine
	messages      message.Repository
	conversations conversation.Repository
}

func NewHandler(engine *Engine, messages message.Repository, conversations conversation.Repository) *Handler {
	return &Handler{engine: engine, messages: messages, conversations: conversations}
}

type submitRequest struct {
	Content string `json:"content"`
	Stream  *bool  `json:"stream"`
}

type editRequest struct {
	Content string `json:"content"`
}

// errorCode maps pipeline errors to the stable wire code and HTTP status
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, conversation.ErrNotFound), errors.Is(err, message.ErrNotFound):
		return "not_found", fiber.StatusNotFound
	case errors.Is(err, ErrContentPolicyViolation):
		return "content_policy_violation", fiber.StatusUnprocessableEntity
	case errors.Is(err, usage.ErrQuotaExceeded):
		return "quota_exceeded", fiber.StatusTooManyRequests
	case errors.Is(err, upstream.ErrUnavailable):
		return "upstream_unavailable", fiber.StatusBadGateway
	case errors.Is(err, ErrNotAssistantMessage), errors.Is(err, ErrNotUserMessage):
		return "invalid_role", fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrEmptyContent):
		return "validation_error", fiber.StatusBadRequest
	default:
		return "internal_error", fiber.StatusInternalServerError
	}
}

// Submit handles POST /conversations/:id/messages. Streaming is the
// default; stream=false buffers the full reply into one JSON response.
func (h *Handler) Submit(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	if req.Stream != nil && !*req.Stream {
		res, err := h.engine.Submit(c.Context(), identity.UserID, convID, req.Content, &BufferSink{})
		if err != nil {
			code, status := errorCode(err)
			return utils.ErrorResponse(c, code, status)
		}
		return utils.SuccessResponse(c, fiber.Map{
			"user_message":      res.UserMessage,
			"assistant_message": res.AssistantMessage,
		}, "Message sent", fiber.StatusCreated)
	}

	h.streamResponse(c, func(sink Sink) (any, error) {
		res, err := h.engine.Submit(c.Context(), identity.UserID, convID, req.Content, sink)
		if err != nil {
			return nil, err
		}
		return fiber.Map{
			"user_message":      res.UserMessage,
			"assistant_message": res.AssistantMessage,
		}, nil
	})
	return nil
}

// Regenerate handles POST /messages/:id/regenerate
func (h *Handler) Regenerate(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	msgID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	var req submitRequest
	c.BodyParser(&req)

	if req.Stream != nil && !*req.Stream {
		msg, err := h.engine.Regenerate(c.Context(), identity.UserID, msgID, &BufferSink{})
		if err != nil {
			code, status := errorCode(err)
			return utils.ErrorResponse(c, code, status)
		}
		return utils.SuccessResponse(c, fiber.Map{"message": msg}, "Message regenerated")
	}

	h.streamResponse(c, func(sink Sink) (any, error) {
		msg, err := h.engine.Regenerate(c.Context(), identity.UserID, msgID, sink)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"message": msg}, nil
	})
	return nil
}

// streamResponse relays deltas as server-sent events. The headers are
// committed before the pipeline runs, so errors raised mid-exchange are
// delivered as an SSE error event rather than an HTTP status.
func (h *Handler) streamResponse(c *fiber.Ctx, run func(Sink) (any, error)) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	sink := newChannelSink()

	type outcome struct {
		final any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		final, err := run(sink)
		done <- outcome{final, err}
	}()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for delta := range sink.ch {
			payload, _ := json.Marshal(fiber.Map{"delta": delta})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if err := w.Flush(); err != nil {
				// Client went away; keep draining so the engine can finalize
				for range sink.ch {
				}
				break
			}
		}

		out := <-done
		if out.err != nil {
			code, _ := errorCode(out.err)
			payload, _ := json.Marshal(fiber.Map{"error": code})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		} else if out.final != nil {
			payload, _ := json.Marshal(out.final)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush()
	}))
}

// List handles GET /conversations/:id/messages
func (h *Handler) List(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	conv, err := h.conversations.FindOwned(convID, identity.UserID)
	if err != nil {
		code, status := errorCode(err)
		return utils.ErrorResponse(c, code, status)
	}

	msgs, err := h.messages.ListByConversation(conv.ID.String())
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"messages": msgs}, "Messages retrieved")
}

// Edit handles PATCH /messages/:id for user messages
func (h *Handler) Edit(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	msgID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	msg, err := h.engine.EditUserMessage(identity.UserID, msgID, req.Content)
	if err != nil {
		code, status := errorCode(err)
		return utils.ErrorResponse(c, code, status)
	}

	return utils.SuccessResponse(c, fiber.Map{"message": msg}, "Message updated")
}

// Versions handles GET /messages/:id/versions
func (h *Handler) Versions(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	msgID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	msg, err := h.messages.FindByID(msgID)
	if err != nil {
		code, status := errorCode(err)
		return utils.ErrorResponse(c, code, status)
	}

	convID, err := uuid.Parse(msg.ConversationID)
	if err != nil {
		return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
	}
	if _, err := h.conversations.FindOwned(convID, identity.UserID); err != nil {
		code, status := errorCode(err)
		return utils.ErrorResponse(c, code, status)
	}

	versions, err := h.messages.ListVersions(msg.ID.String())
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"versions": versions}, "Versions retrieved")
}
