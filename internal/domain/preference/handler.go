package preference

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nethira/chatcore/internal/domain/auth"
	"github.com/nethira/chatcore/internal/utils"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type updateRequest struct {
	DefaultModel *string  `json:"default_model"`
	Temperature  *float64 `json:"temperature"`
	Tone         *string  `json:"tone"`
	Theme        *string  `json:"theme"`
}

// Me handles GET /preferences/me
func (h *Handler) Me(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	p, err := h.svc.Get(identity.UserID)
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"preferences": p}, "Preferences retrieved")
}

// Update handles PATCH /preferences/me
func (h *Handler) Update(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	p, err := h.svc.Update(identity.UserID, Updates{
		DefaultModel: req.DefaultModel,
		Temperature:  req.Temperature,
		Tone:         req.Tone,
		Theme:        req.Theme,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTone) || errors.Is(err, ErrInvalidTheme) || errors.Is(err, ErrInvalidTemperature) {
			return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"preferences": p}, "Preferences updated")
}
