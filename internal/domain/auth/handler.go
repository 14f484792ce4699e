package auth

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nethira/chatcore/internal/domain/session"
	"github.com/nethira/chatcore/internal/domain/user"
	"github.com/nethira/chatcore/internal/utils"
)

type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler
func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) setTokenCookies(c *fiber.Ctx, pair TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     AccessCookie,
		Value:    pair.AccessToken,
		HTTPOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: "Lax",
		Expires:  time.Now().Add(h.service.AccessTTL()),
	})
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		HTTPOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: "Lax",
		Expires:  time.Now().Add(h.service.RefreshTTL()),
	})
}

func clearTokenCookies(c *fiber.Ctx) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			HTTPOnly: true,
			Path:     "/",
			Expires:  time.Now().Add(-time.Hour),
		})
	}
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req user.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	res, err := h.service.Register(req)
	if err != nil {
		if errors.Is(err, ErrInvalidBody) {
			return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{"user": res}, "User registered successfully", fiber.StatusCreated)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req user.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "validation_error", fiber.StatusBadRequest)
	}

	res, err := h.service.Login(req.Email, req.Password, c.Get("User-Agent"), c.IP())
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return utils.ErrorResponse(c, "invalid_credentials", fiber.StatusUnauthorized)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}

	h.setTokenCookies(c, res.TokenPair)

	return utils.SuccessResponse(c, fiber.Map{
		"user":       res.User,
		"session_id": res.SessionID,
	}, "Login successful")
}

// Refresh runs the explicit rotation handshake. The body is empty; the
// refresh credential travels in its cookie.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshCookie)
	if refreshToken == "" {
		return utils.ErrorResponse(c, "unauthenticated", fiber.StatusUnauthorized)
	}

	pair, err := h.service.Refresh(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrReplayDetected):
			return utils.ErrorResponse(c, "token_replay", fiber.StatusUnauthorized)
		case errors.Is(err, session.ErrInvalidSession), errors.Is(err, session.ErrExpiredSession):
			return utils.ErrorResponse(c, "session_invalid", fiber.StatusUnauthorized)
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrWrongTokenType):
			return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
		default:
			return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
		}
	}

	h.setTokenCookies(c, *pair)

	return utils.SuccessResponse(c, fiber.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "Token refreshed")
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshCookie)

	if refreshToken != "" {
		if err := h.service.Logout(refreshToken, c.Get("User-Agent"), c.IP()); err != nil {
			return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
		}
	}

	clearTokenCookies(c)

	return utils.SuccessResponse(c, nil, "Logged out")
}

func (h *Handler) Me(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	if identity == nil {
		return utils.ErrorResponse(c, "unauthenticated", fiber.StatusUnauthorized)
	}

	u, err := h.service.Users.FindByID(identity.UserID)
	if err != nil {
		return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
	}

	return utils.SuccessResponse(c, fiber.Map{"user": u.ToResponse()}, "User information retrieved")
}
