package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nethira/chatcore/internal/cache"
	"github.com/nethira/chatcore/internal/domain/session"
	"github.com/nethira/chatcore/internal/domain/user"
	"github.com/nethira/chatcore/internal/utils"
)

const (
	// IdentityKey is the key used to store the identity in Fiber context
	IdentityKey = "identity"

	// AccessCookie and RefreshCookie are the credential cookie names
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// accessTokenFrom pulls the access credential from the Authorization header
// or the access cookie
func accessTokenFrom(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Cookies(AccessCookie)
}

// Middleware resolves a verified identity for every non-public request, or
// rejects it. It never mutates session state: when the access token has
// expired but the refresh credential still matches, it answers with the
// refresh-available signal and leaves rotation to the explicit refresh
// operation.
func Middleware(svc *Service, sessions session.Service, revocations *cache.RevocationCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := accessTokenFrom(c)
		if raw == "" {
			return utils.ErrorResponse(c, "unauthenticated", fiber.StatusUnauthorized)
		}

		claims, err := svc.ParseClaims(raw)
		if err != nil {
			return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
		}
		if claims.TokenType() != TokenTypeAccess {
			return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
		}

		if claims.Expired() {
			return refreshSignal(c, svc, sessions)
		}

		if err := claims.Validate(svc.issuer); err != nil {
			return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
		}

		sid, err := uuid.Parse(claims.SessionID())
		if err != nil {
			return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
		}

		if revocations != nil && revocations.IsSessionRevoked(context.Background(), sid.String()) {
			return utils.ErrorResponse(c, "session_invalid", fiber.StatusUnauthorized)
		}

		sess, err := sessions.Get(sid)
		if err != nil || !sess.IsValid || time.Now().UTC().After(sess.ExpiresAt) {
			return utils.ErrorResponse(c, "session_invalid", fiber.StatusUnauthorized)
		}

		c.Locals(IdentityKey, &Identity{
			UserID:    claims.Subject(),
			Role:      claims.Role(),
			SessionID: sid.String(),
		})

		return c.Next()
	}
}

// refreshSignal handles the expired-access path: verify the refresh
// credential read-only and tell the caller whether a refresh handshake
// would succeed.
func refreshSignal(c *fiber.Ctx, svc *Service, sessions session.Service) error {
	refreshToken := c.Cookies(RefreshCookie)
	if refreshToken == "" {
		return utils.ErrorResponse(c, "unauthenticated", fiber.StatusUnauthorized)
	}

	claims, err := svc.ParseClaims(refreshToken)
	if err != nil || claims.TokenType() != TokenTypeRefresh {
		return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
	}
	if err := claims.Validate(svc.issuer); err != nil {
		return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
	}

	sid, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
	}

	sess, err := sessions.Get(sid)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return utils.ErrorResponse(c, "session_invalid", fiber.StatusUnauthorized)
		}
		return utils.ErrorResponse(c, "internal_error", fiber.StatusInternalServerError)
	}
	if !sess.IsValid || time.Now().UTC().After(sess.ExpiresAt) {
		return utils.ErrorResponse(c, "session_invalid", fiber.StatusUnauthorized)
	}

	if session.HashToken(refreshToken) != sess.RefreshHash {
		return utils.ErrorResponse(c, "token_replay", fiber.StatusUnauthorized)
	}

	return utils.ErrorResponse(c, "access_expired_refresh_available", fiber.StatusForbidden)
}

// RequireAdmin gates admin-only routes. It runs after Middleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil || identity.Role != user.RoleAdmin {
			// Admin surfaces are hidden, not forbidden
			return utils.ErrorResponse(c, "not_found", fiber.StatusNotFound)
		}
		return c.Next()
	}
}

// GetIdentity extracts the identity from Fiber context
func GetIdentity(c *fiber.Ctx) *Identity {
	identity, ok := c.Locals(IdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
