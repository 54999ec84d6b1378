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

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/chain"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/pool"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol/uniswapv3"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/storage/postgres"
)

func runPositionAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dsn, _ := flags.GetString("pg-dsn")
	if dsn == "" {
		dsn = os.Getenv("MIDCURVE_PG_DSN")
	}
	rpcURL, _ := flags.GetString("rpc")
	id, _ := flags.GetString("id")
	chainID, _ := flags.GetUint64("chain-id")
	pool, _ := flags.GetString("pool")
	tokenID, _ := flags.GetString("token-id")
	owner, _ := flags.GetString("owner")
	logLevel, _ := flags.GetString("log-level")

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if dsn == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if id == "" {
		return fmt.Errorf("position id is required")
	}
	if chainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if !common.IsHexAddress(pool) {
		return fmt.Errorf("invalid pool address: %s", pool)
	}
	if _, err := model.ParseBigInt(tokenID); err != nil || tokenID == "" {
		return fmt.Errorf("invalid token id: %q", tokenID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rpcURL != "" {
		if err := verifyPool(ctx, rpcURL, chainID, pool, logger); err != nil {
			return err
		}
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	err = postgres.NewPositionStore(store).Upsert(ctx, &model.Position{
		ID:         id,
		Protocol:   uniswapv3.ProtocolName,
		ChainID:    chainID,
		PoolID:     pool,
		ExternalID: tokenID,
		Owner:      owner,
	})
	if err != nil {
		return err
	}

	logger.Info("position registered",
		zap.String("id", id),
		zap.Uint64("chain_id", chainID),
		zap.String("pool", pool),
		zap.String("token_id", tokenID),
	)

	return nil
}

// verifyPool checks that the address responds like a pool on the expected
// chain and logs its token pair.
func verifyPool(ctx context.Context, rpcURL string, chainID uint64, poolAddress string, logger *zap.Logger) error {
	chainClient, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	connected, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if connected != chainID {
		return fmt.Errorf("rpc serves chain %d, position is on chain %d", connected, chainID)
	}

	resolver := pool.NewResolver(chainClient, logger)
	meta, err := resolver.PoolMeta(ctx, poolAddress)
	if err != nil {
		return fmt.Errorf("verify pool %s: %w", poolAddress, err)
	}

	symbol := func(address string) string {
		tokenMeta, err := resolver.TokenMeta(ctx, address)
		if err != nil || tokenMeta.Symbol == "" {
			return address
		}
		return tokenMeta.Symbol
	}

	logger.Info("pool verified",
		zap.String("pool", poolAddress),
		zap.String("token0", symbol(meta.Token0)),
		zap.String("token1", symbol(meta.Token1)),
		zap.Uint32("fee", meta.Fee),
	)

	return nil
}
