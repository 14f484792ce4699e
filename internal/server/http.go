package server

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/nethira/chatcore/internal/cache"
	"github.com/nethira/chatcore/internal/config"
	"github.com/nethira/chatcore/internal/database"
	"github.com/nethira/chatcore/internal/domain/audit"
	"github.com/nethira/chatcore/internal/domain/auth"
	"github.com/nethira/chatcore/internal/domain/chat"
	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/flag"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/domain/moderation"
	"github.com/nethira/chatcore/internal/domain/preference"
	"github.com/nethira/chatcore/internal/domain/session"
	"github.com/nethira/chatcore/internal/domain/usage"
	"github.com/nethira/chatcore/internal/domain/user"
	"github.com/nethira/chatcore/internal/migrations"
	"github.com/nethira/chatcore/internal/upstream"
)

// Start initializes and starts the HTTP server
func Start(cfg *config.Config, env *config.Environment) error {
	initLogger(cfg.Logging.Level)

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})

	if err := database.ConnectDB(cfg); err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return err
	}
	slog.Info("Database connected successfully")

	if err := migrations.RunMigrations(database.DB); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return err
	}
	slog.Info("Migrations completed successfully")

	// The revocation cache is an optimization; the server runs without it
	var revocations *cache.RevocationCache
	if err := cache.ConnectRedis(&cfg.Redis); err != nil {
		slog.Warn("Redis unavailable, session revocation cache disabled", "error", err)
	} else {
		revocations = cache.NewRevocationCache()
	}

	privateKey, err := config.LoadRSAPrivateKey(env.PrivateKey, env.Environment)
	if err != nil {
		slog.Error("Failed to load signing key", "error", err)
		return err
	}
	keyStore, err := auth.NewKeyStore(privateKey, cfg.App.Name)
	if err != nil {
		slog.Error("Failed to build key store", "error", err)
		return err
	}

	users := user.NewRepository(database.DB)
	sessions := session.NewServiceWithCache(session.NewRepository(database.DB), revocations)
	recorder := audit.NewRecorder(database.DB)
	conversations := conversation.NewRepository(database.DB)
	messages := message.NewRepository(database.DB)

	authService := auth.NewService(users, sessions, recorder, keyStore, cfg.Auth.Issuer, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	flagService := flag.NewService(database.DB, messages)
	ledger := usage.NewLedger(database.DB, cfg.Quota.MonthlyTokenLimit)
	prefs := preference.NewService(database.DB, cfg.Upstream.DefaultModel)
	provider := upstream.New(cfg.Upstream.BaseURL, env.UpstreamAPIKey, cfg.Upstream.DefaultModel, cfg.Upstream.IdleTimeout)
	engine := chat.NewEngine(conversations, messages, moderation.KeywordClassifier{}, flagService, ledger, prefs, provider, cfg.Quota.CostPer1K)

	deps := &Dependencies{
		Auth:          auth.NewHandler(authService),
		AuthService:   authService,
		Sessions:      sessions,
		Revocations:   revocations,
		Conversations: conversation.NewHandler(conversations, cfg.Upstream.DefaultModel),
		Chat:          chat.NewHandler(engine, messages, conversations),
		Flags:         flag.NewHandler(flagService),
		Usage:         usage.NewHandler(ledger),
		Preferences:   preference.NewHandler(prefs),
	}

	SetupRoutes(app, deps)

	addr := cfg.Server.Address()
	slog.Info("Server starting", "address", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

func initLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(handler))
}
