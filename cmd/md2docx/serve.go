// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/internal/metrics"
	"github.com/pdiddy/md2docx/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form and conversion API",
	Long: `Serve starts the HTTP server: a markdown form at /, a JSON API at
/api/v1/convert, downloads at /download/{id}, plus /health and /metrics.

Converted documents stay downloadable for artifacts.ttl and are then deleted
by a background sweeper.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "listen address (default :8080)")
	serveCmd.Flags().String("db", "", "SQLite ledger of issued documents (default: in memory)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Artifacts)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	svc, err := newService(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	svc.WithRecorder(m)

	sweeper := artifact.NewSweeper(store, logger).WithRecorder(m)
	// Documents left over from a previous run may already be due. Those
	// issued from an in-memory ledger are only found on disk.
	now := time.Now()
	if _, err := sweeper.Sweep(ctx, now); err != nil {
		logger.Warn().Err(err).Msg("initial sweep failed")
	}
	if _, err := svc.RemoveStale(now.Add(-cfg.Artifacts.TTL)); err != nil {
		logger.Warn().Err(err).Msg("removing stale work files")
	}
	go sweeper.Run(ctx, cfg.Artifacts.SweepInterval)

	logger.Info().
		Str("work_dir", cfg.Conversion.WorkDir).
		Dur("ttl", cfg.Artifacts.TTL).
		Str("ledger", ledgerName(cfg.Artifacts.DBPath)).
		Msg("server starting")

	srv := server.New(cfg.Server, svc, store, m.Handler(), logger)
	return srv.ListenAndServe(ctx)
}

func ledgerName(dbPath string) string {
	if dbPath == "" {
		return "memory"
	}
	return dbPath
}
