// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/md2docx/internal/artifact"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired documents from the artifact ledger",
	Long: `Sweep runs one cleanup pass over a persistent artifact ledger, deleting
documents whose TTL has passed. Use it from cron when the server is not
running, or to reclaim disk after a crash.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().String("db", "", "SQLite ledger to sweep")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if cfg.Artifacts.DBPath == "" {
		return errors.New("sweep needs a persistent ledger: set artifacts.db_path or pass --db")
	}

	store, err := artifact.NewSQLiteStore(cfg.Artifacts.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := artifact.NewSweeper(store, logger).Sweep(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired documents", result.Removed)
	if result.HasFailures() {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d could not be removed", result.Failed)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
