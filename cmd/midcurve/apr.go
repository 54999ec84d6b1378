package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/apr"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/config"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/ledger"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol/uniswapv3"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/storage/postgres"
)

func runApr(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	periodStore := postgres.NewPeriodStore(store)
	ledgerStore := ledger.NewStore(postgres.NewEventStore(store), uniswapv3.New(nil), logger)
	calculator := apr.NewCalculator(ledgerStore, periodStore, logger)

	periods, err := periodStore.FindAll(ctx, cfg.Position)
	if err != nil {
		return err
	}

	fmt.Printf("%-25s  %-25s  %10s  %14s  %9s\n", "START", "END", "DURATION", "FEES", "APR")
	for _, period := range periods {
		fmt.Printf("%-25s  %-25s  %10s  %14s  %9s\n",
			period.StartTimestamp.Format(time.RFC3339),
			period.EndTimestamp.Format(time.RFC3339),
			(time.Duration(period.DurationSeconds) * time.Second).String(),
			model.FormatBigInt(period.CollectedFeeValue),
			formatBps(period.AprBps),
		)
	}

	current, ok, err := calculator.GetCurrentApr(ctx, cfg.Position)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("\ncurrent apr: %s\n", formatBps(current))
	}

	average, ok, err := calculator.GetAverageApr(ctx, cfg.Position)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("average apr: %s\n", formatBps(average))
	}

	return nil
}

// formatBps renders basis points as a percentage with two decimals.
func formatBps(bps int64) string {
	return decimal.NewFromInt(bps).Div(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
