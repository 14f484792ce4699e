package conversation

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nethira/chatcore/internal/domain/auth"
	"github.com/nethira/chatcore/internal/utils"
)

type Handler struct {
	repo         Repository
	defaultModel string
}

func NewHandler(repo Repository, defaultModel string) *Handler {
	return &Handler{repo: repo, defaultModel: defaultModel}
}

type createRequest struct {
	Title        string `json:"title"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

type updateRequest struct {
	Title        *string `json:"title"`
	Model        *string `json:"model"`
	SystemPrompt *string `json:"system_prompt"`
}

func (h *Handler) Create(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	conv := &Conversation{
		UserID:       identity.UserID,
		Title:        req.Title,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Visibility:   VisibilityPrivate,
	}
	if conv.Title == "" {
		conv.Title = "New Chat"
	}
	if conv.Model == "" {
		conv.Model = h.defaultModel
	}

	if err := h.repo.Create(conv); err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"conversation": conv}, "Conversation created", fiber.StatusCreated)
}

func (h *Handler) List(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	includeArchived := c.QueryBool("archived", false)
	convs, err := h.repo.ListByOwner(identity.UserID, includeArchived)
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"conversations": convs}, "Conversations retrieved")
}

func (h *Handler) Get(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	conv, err := h.repo.FindOwned(id, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"conversation": conv}, "Conversation retrieved")
}

func (h *Handler) Update(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	conv, err := h.repo.FindOwned(id, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	if req.Title != nil {
		conv.Title = *req.Title
	}
	if req.Model != nil {
		conv.Model = *req.Model
	}
	if req.SystemPrompt != nil {
		conv.SystemPrompt = *req.SystemPrompt
	}

	if err := h.repo.Update(conv); err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"conversation": conv}, "Conversation updated")
}

// Archive handles DELETE; rows are archived, never removed
func (h *Handler) Archive(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	if err := h.repo.Archive(id, identity.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "Conversation archived")
}
