package usage

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nethira/chatcore/internal/domain/auth"
	"github.com/nethira/chatcore/internal/utils"
)

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Me handles GET /usage/me
func (h *Handler) Me(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	current, err := h.ledger.Current(identity.UserID)
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	var used int64
	if current != nil {
		used = current.TotalTokens
	}
	limit := h.ledger.Limit()

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	return utils.SuccessResponse(c, fiber.Map{
		"current":          current,
		"tokens_used":      used,
		"tokens_limit":     limit,
		"tokens_remaining": remaining,
	}, "Usage retrieved")
}

// History handles GET /usage/me/history
func (h *Handler) History(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)

	rows, err := h.ledger.History(identity.UserID)
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"periods": rows}, "Usage history retrieved")
}

// List handles GET /usage (admin): every user's row for the running period
func (h *Handler) List(c *fiber.Ctx) error {
	rows, err := h.ledger.ListPeriod()
	if err != nil {
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"metrics": rows}, "Usage metrics retrieved")
}
