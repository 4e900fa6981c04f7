package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillBatchSize int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Derive missing assignedAt/inProgressAt/resolvedAt timestamps from ticket history",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 0, "tickets read per page (defaults to BACKFILL_BATCH_SIZE)")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	application, err := bootstrap(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer shutdown(application)

	batch := backfillBatchSize
	if batch <= 0 {
		batch = application.Config.Backfill.BatchSize
	}
	report, err := application.Tickets.BackfillTimestamps(cmd.Context(), batch)
	if err != nil {
		application.Logger.Error("backfill aborted", zap.Error(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d updated=%d failed=%d\n", report.Scanned, report.Updated, report.Failed)
	return nil
}
