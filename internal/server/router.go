package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nethira/chatcore/internal/cache"
	"github.com/nethira/chatcore/internal/domain/auth"
	"github.com/nethira/chatcore/internal/domain/chat"
	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/flag"
	"github.com/nethira/chatcore/internal/domain/preference"
	"github.com/nethira/chatcore/internal/domain/session"
	"github.com/nethira/chatcore/internal/domain/usage"
)

// Dependencies bundles the wired handlers the router mounts
type Dependencies struct {
	Auth          *auth.Handler
	AuthService   *auth.Service
	Sessions      session.Service
	Revocations   *cache.RevocationCache
	Conversations *conversation.Handler
	Chat          *chat.Handler
	Flags         *flag.Handler
	Usage         *usage.Handler
	Preferences   *preference.Handler
}

// SetupRoutes sets up the routes for the application
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	api := app.Group("/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})

	// Public auth surface
	authGroup := api.Group("/auth")
	authGroup.Post("/register", deps.Auth.Register)
	authGroup.Post("/login", deps.Auth.Login)
	authGroup.Post("/refresh", deps.Auth.Refresh)
	authGroup.Post("/logout", deps.Auth.Logout)

	// Everything below requires a verified identity
	authed := api.Group("", auth.Middleware(deps.AuthService, deps.Sessions, deps.Revocations))

	authed.Get("/auth/me", deps.Auth.Me)

	authed.Post("/conversations", deps.Conversations.Create)
	authed.Get("/conversations", deps.Conversations.List)
	authed.Get("/conversations/:id", deps.Conversations.Get)
	authed.Patch("/conversations/:id", deps.Conversations.Update)
	authed.Delete("/conversations/:id", deps.Conversations.Archive)

	authed.Post("/conversations/:id/messages", deps.Chat.Submit)
	authed.Get("/conversations/:id/messages", deps.Chat.List)
	authed.Patch("/messages/:id", deps.Chat.Edit)
	authed.Post("/messages/:id/regenerate", deps.Chat.Regenerate)
	authed.Get("/messages/:id/versions", deps.Chat.Versions)

	authed.Get("/usage/me", deps.Usage.Me)
	authed.Get("/usage/me/history", deps.Usage.History)

	authed.Get("/preferences/me", deps.Preferences.Me)
	authed.Patch("/preferences/me", deps.Preferences.Update)

	// Admin surface; non-admins see not_found
	admin := authed.Group("", auth.RequireAdmin())
	admin.Get("/usage", deps.Usage.List)
	admin.Get("/flags", deps.Flags.List)
	admin.Patch("/flags/:id", deps.Flags.Act)
}
