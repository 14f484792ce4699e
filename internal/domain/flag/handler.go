package flag

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nethira/chatcore/internal/utils"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type actRequest struct {
	Action string `json:"action"`
}

// List handles GET /flags (admin)
func (h *Handler) List(c *fiber.Ctx) error {
	category := c.Query("category")
	limit := c.QueryInt("limit", 100)

	flags, err := h.service.List(category, limit)
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"flags": flags}, "Flags retrieved")
}

// Act handles PATCH /flags/:id (admin)
func (h *Handler) Act(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	var req actRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	f, err := h.service.Act(id, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
		case errors.Is(err, ErrInvalidAction):
			return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
		default:
			return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
		}
	}

	return utils.SuccessResponse(c, fiber.Map{"flag": f}, "Flag updated")
}
