package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := bootstrap(ctx, nil)
	if err != nil {
		return err
	}
	defer shutdown(application)

	server := application.HTTP()
	logger := application.Logger
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", application.Config.App.Addr()))
		errCh <- server.Listen(application.Config.App.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), application.Config.App.RequestTimeout()+5*time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}
