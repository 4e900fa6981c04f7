package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema or the Mongo indexes, then exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	var driver string
	application, err := bootstrap(cmd.Context(), func(cfg *config.Config) {
		cfg.Postgres.RunMigrations = true
		driver = cfg.Store.Driver
	})
	if err != nil {
		return err
	}
	defer shutdown(application)

	if driver == config.DriverMemory {
		return fmt.Errorf("migrate: STORE_DRIVER=%s has no schema", driver)
	}
	application.Logger.Info("migrate: ok")
	return nil
}
