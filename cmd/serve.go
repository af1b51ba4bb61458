package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rivertownball/riverchat/internal/api"
	"github.com/rivertownball/riverchat/internal/app"
	"github.com/rivertownball/riverchat/internal/config"
	"github.com/rivertownball/riverchat/internal/log"
)

// runServe initializes and starts the HTTP API server.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	srv := api.NewServer(a.Sessions, a.Router, logger)
	return srv.Run(ctx, addr)
}
