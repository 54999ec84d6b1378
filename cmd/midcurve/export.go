package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/config"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/storage"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/storage/postgres"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.Position == "" {
		return fmt.Errorf("position id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	events, err := postgres.NewEventStore(store).FindAll(ctx, cfg.Position)
	if err != nil {
		return err
	}

	exporter := storage.NewJsonlExporter(cfg.Out)
	if err := exporter.PutEventBatch(events); err != nil {
		return err
	}

	logger.Info("export done",
		zap.String("position", cfg.Position),
		zap.Int("events", len(events)),
		zap.String("out", cfg.Out),
	)

	return nil
}
