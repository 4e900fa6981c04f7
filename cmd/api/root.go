package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/app"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:          "helpdesk",
	Short:        "Technical support ticketing API",
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(tokenCmd)
}

// bootstrap loads configuration, builds the logger and lets mutate adjust the config
// before the service graph is connected.
func bootstrap(ctx context.Context, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		_ = logger.Sync()
		return nil, err
	}
	return application, nil
}

func shutdown(application *app.App) {
	application.Close()
	_ = application.Logger.Sync()
}
