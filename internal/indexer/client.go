package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/chain"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// ClientConfig holds runtime settings for the indexer client.
type ClientConfig struct {
	// PositionManager is the NonfungiblePositionManager contract address.
	PositionManager common.Address
	BatchSize       uint64
	MaxRetries      int
	RetryBackoff    time.Duration
}

// Client fetches confirmed position events from the chain. It is the
// authoritative-but-lagging side of reconciliation.
type Client struct {
	cfg    ClientConfig
	chain  *chain.Client
	logger *zap.Logger
}

// NewClient builds an indexer client with its dependencies.
func NewClient(cfg ClientConfig, chainClient *chain.Client, logger *zap.Logger) (*Client, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10_000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, chain: chainClient, logger: logger}, nil
}

// FetchEvents returns the position's events in [fromBlock, toBlock], with
// toBlock == 0 meaning latest. No ordering is guaranteed.
func (c *Client) FetchEvents(ctx context.Context, chainID uint64, externalPositionID string, fromBlock, toBlock uint64) ([]model.RawEvent, error) {
	connected, err := c.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if connected != chainID {
		return nil, fmt.Errorf("rpc serves chain %d, requested %d", connected, chainID)
	}

	tokenID, err := model.ParseBigInt(externalPositionID)
	if err != nil {
		return nil, fmt.Errorf("external position id: %w", err)
	}

	if toBlock == 0 {
		latest, err := c.chain.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
		toBlock = latest
	}
	if fromBlock > toBlock {
		return nil, nil
	}

	npmABI, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}

	topics := [][]common.Hash{
		{
			npmABI.Events["IncreaseLiquidity"].ID,
			npmABI.Events["DecreaseLiquidity"].ID,
			npmABI.Events["Collect"].ID,
		},
		{common.BigToHash(tokenID)},
	}

	ranges, err := SplitRange(fromBlock, toBlock, c.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	events := make([]model.RawEvent, 0)
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logs, err := c.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topics)
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}
			ts, err := c.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			raw, err := parseLog(npmABI, chainID, log, ts)
			if err != nil {
				return nil, fmt.Errorf("parse log: %w", err)
			}
			events = append(events, raw)
		}

		c.logger.Debug("indexer batch complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("logs", len(logs)),
		)
	}

	return events, nil
}

func (c *Client) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics [][]common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = c.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{c.cfg.PositionManager}, topics)
		if err != nil {
			c.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (c *Client) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = c.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			c.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
