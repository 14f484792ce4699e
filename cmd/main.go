package main

import (
	"log/slog"
	"os"

	"github.com/nethira/chatcore/internal/config"
	"github.com/nethira/chatcore/internal/server"
)

func main() {
	env := config.LoadEnv()

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if env.DBPassword != "" {
		cfg.Database.Password = env.DBPassword
	}

	if err := server.Start(cfg, env); err != nil {
		os.Exit(1)
	}
}
