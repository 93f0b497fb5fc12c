// Askari - security engine for the marketplace order pipeline
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/askari-labs/askari/internal/config"
	"github.com/askari-labs/askari/internal/logging"
	"github.com/askari-labs/askari/internal/server"
)

// Build info - set by ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "askari:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	format := "text"
	if cfg.IsProduction() {
		format = "json"
	}
	logger := logging.New(cfg.LogLevel, format)

	logger.Info("starting askari",
		"version", Version,
		"commit", Commit,
		"env", cfg.Env,
		"port", cfg.Port,
		"order_rate_limit", cfg.OrderRateLimit,
		"rate_limit_window", cfg.RateLimitWindow.String(),
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	return srv.Run(context.Background())
}