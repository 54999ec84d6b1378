package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/apr"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/chain"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/config"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/indexer"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/ledger"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/price"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol/uniswapv3"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/storage/postgres"
	ledgersync "github.com/0xNedAlbo/midcurve-services-sub002/internal/sync"
)

func runSync(cmd *cobra.Command, _ []string) error {
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

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.Position == "" {
		return fmt.Errorf("position id is required")
	}
	if !common.IsHexAddress(cfg.PositionManager) {
		return fmt.Errorf("invalid position manager address: %s", cfg.PositionManager)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	proto := uniswapv3.New(nil)
	eventStore := postgres.NewEventStore(store)
	ledgerStore := ledger.NewStore(eventStore, proto, logger)
	calculator := apr.NewCalculator(ledgerStore, postgres.NewPeriodStore(store), logger)

	indexerClient, err := indexer.NewClient(indexer.ClientConfig{
		PositionManager: common.HexToAddress(cfg.PositionManager),
		BatchSize:       cfg.BatchSize,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, chainClient, logger)
	if err != nil {
		return err
	}

	orchestrator := ledgersync.NewOrchestrator(ledgersync.Deps{
		Positions: postgres.NewPositionStore(store),
		Ledger:    ledgerStore,
		States:    postgres.NewSyncStateStore(store),
		Apr:       calculator,
		Finality:  chainClient,
		Indexer:   indexerClient,
		Prices:    price.NewDiscovery(chainClient, logger),
		Protocol:  proto,
	}, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("position", cfg.Position),
		zap.Bool("full_resync", cfg.FullResync),
	)

	result, err := orchestrator.SyncLedgerEvents(ctx, ledgersync.Params{
		PositionID: cfg.Position,
		FullResync: cfg.FullResync,
		SyncBy:     cfg.SyncBy,
	})
	if err != nil {
		return err
	}

	logger.Info("sync done",
		zap.Int("events_added", result.EventsAdded),
		zap.Uint64("from_block", result.FromBlock),
		zap.Uint64("finalized", result.FinalizedBlock),
	)

	return nil
}
