// Package sync rebuilds a position's ledger from a finality-safe checkpoint
// and reconciles the pending-event buffer against indexer results.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/ledger"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/position"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/reconcile"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/syncstate"
)

// ErrUpstreamUnavailable marks a sync run aborted because the finality oracle
// or the indexer could not be reached. The run is fully retryable from
// scratch.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrPositionNotFound marks a sync request for an unknown position or pool.
var ErrPositionNotFound = errors.New("position not found")

// FinalityOracle reports the highest block considered immutable on a chain.
type FinalityOracle interface {
	LastFinalizedBlock(ctx context.Context, chainID uint64) (uint64, error)
}

// IndexerSource fetches confirmed position events. toBlock == 0 means latest.
// No ordering guarantee is assumed.
type IndexerSource interface {
	FetchEvents(ctx context.Context, chainID uint64, externalPositionID string, fromBlock, toBlock uint64) ([]model.RawEvent, error)
}

// PriceSource resolves the pool price pinned to a block. Implementations are
// expected to cache by (pool, block).
type PriceSource interface {
	HistoricPrice(ctx context.Context, poolID string, blockNumber uint64) (*protocol.PriceState, error)
}

// PositionSource looks up tracked positions. Returns ErrPositionNotFound for
// unknown ids.
type PositionSource interface {
	GetPosition(ctx context.Context, positionID string) (*model.Position, error)
}

// Params configures one sync run.
type Params struct {
	PositionID string
	// FullResync rebuilds from the protocol's deployment block instead of
	// the last ledger checkpoint.
	FullResync bool
	SyncBy     string
}

// Result summarizes one sync run.
type Result struct {
	EventsAdded    int
	FinalizedBlock uint64
	FromBlock      uint64
}

// Deps are the orchestrator's collaborators. The orchestrator holds no
// process-wide state; callers must serialize sync runs per position.
type Deps struct {
	Positions PositionSource
	Ledger    *ledger.Store
	States    syncstate.Repository
	Apr       AprRefresher
	Finality  FinalityOracle
	Indexer   IndexerSource
	Prices    PriceSource
	Protocol  protocol.Protocol
}

// AprRefresher recomputes a position's derived periods. Satisfied by the APR
// calculator.
type AprRefresher interface {
	CalculateAprPeriods(ctx context.Context, positionID string) ([]*model.AprPeriod, error)
}

// Orchestrator drives the sync pipeline: finality boundary, rebuild window,
// reconciliation, sequential per-event state computation, buffer pruning, and
// APR refresh.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger
}

func NewOrchestrator(deps Deps, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, logger: logger}
}

// SyncLedgerEvents runs one sync for a position. Every partial insertion is
// independently idempotent, so an aborted run is safe to re-invoke from
// scratch.
func (o *Orchestrator) SyncLedgerEvents(ctx context.Context, params Params) (*Result, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	pos, err := o.deps.Positions.GetPosition(ctx, params.PositionID)
	if err != nil {
		return nil, err
	}
	if pos.Protocol != o.deps.Protocol.Name() {
		return nil, fmt.Errorf("position %s uses protocol %s, orchestrator handles %s", pos.ID, pos.Protocol, o.deps.Protocol.Name())
	}

	finalized, err := o.deps.Finality.LastFinalizedBlock(ctx, pos.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: query finalized block: %v", ErrUpstreamUnavailable, err)
	}

	state, err := o.deps.States.Load(ctx, pos.ID)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	genesis, ok := o.deps.Protocol.GenesisBlock(pos.ChainID)
	if !ok {
		return nil, fmt.Errorf("no genesis block for chain %d", pos.ChainID)
	}

	fromBlock, err := o.resolveFromBlock(ctx, pos, params.FullResync, genesis, finalized)
	if err != nil {
		return nil, err
	}

	// Rebuild-from-checkpoint: drop the window instead of patching events
	// in place. The unfinalized tail is always re-verified.
	if params.FullResync {
		if err := o.deps.Ledger.DeleteAllItems(ctx, pos.ID); err != nil {
			return nil, fmt.Errorf("delete ledger: %w", err)
		}
	} else if err := o.deps.Ledger.DeleteFromBlock(ctx, pos.ID, fromBlock); err != nil {
		return nil, fmt.Errorf("delete ledger window: %w", err)
	}

	indexerEvents, err := o.deps.Indexer.FetchEvents(ctx, pos.ChainID, pos.ExternalID, fromBlock, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch indexer events: %v", ErrUpstreamUnavailable, err)
	}

	pendingRaw := make([]model.RawEvent, 0, len(state.PendingEvents))
	for _, pending := range state.MissingEventsSorted() {
		pendingRaw = append(pendingRaw, reconcile.ConvertPendingToRaw(pending, pos.ChainID, pos.ExternalID))
	}

	merged := reconcile.SortByBlockchainOrder(reconcile.Deduplicate(reconcile.Merge(indexerEvents, pendingRaw)))

	o.logger.Info("sync window resolved",
		zap.String("position", pos.ID),
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("finalized", finalized),
		zap.Int("indexer_events", len(indexerEvents)),
		zap.Int("pending_events", len(state.PendingEvents)),
		zap.Int("merged", len(merged)),
	)

	eventsAdded := 0
	if len(merged) > 0 {
		eventsAdded, err = o.processEvents(ctx, pos, merged)
		if err != nil {
			return nil, err
		}
	}

	confirmed := make(map[string]struct{}, len(indexerEvents))
	for _, event := range indexerEvents {
		confirmed[event.TxHash] = struct{}{}
	}
	o.reconcilePending(state, confirmed, finalized)

	state.LastSyncAt = time.Now().UTC()
	state.LastSyncBy = params.SyncBy
	if err := o.deps.States.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save sync state: %w", err)
	}

	// A window deletion may have removed history even when nothing was
	// inserted, so periods are refreshed unconditionally.
	if _, err := o.deps.Apr.CalculateAprPeriods(ctx, pos.ID); err != nil {
		return nil, fmt.Errorf("refresh apr periods: %w", err)
	}

	o.logger.Info("sync complete",
		zap.String("position", pos.ID),
		zap.Int("events_added", eventsAdded),
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("finalized", finalized),
	)

	return &Result{
		EventsAdded:    eventsAdded,
		FinalizedBlock: finalized,
		FromBlock:      fromBlock,
	}, nil
}

func (o *Orchestrator) validate() error {
	deps := o.deps
	if deps.Positions == nil || deps.Ledger == nil || deps.States == nil || deps.Apr == nil {
		return fmt.Errorf("orchestrator dependencies incomplete")
	}
	if deps.Finality == nil || deps.Indexer == nil || deps.Prices == nil || deps.Protocol == nil {
		return fmt.Errorf("orchestrator dependencies incomplete")
	}
	return nil
}

// resolveFromBlock picks the rebuild checkpoint: genesis for full resyncs,
// otherwise min(last ledger event block or genesis, finalized) so the window
// never starts past the finality boundary.
func (o *Orchestrator) resolveFromBlock(ctx context.Context, pos *model.Position, fullResync bool, genesis, finalized uint64) (uint64, error) {
	if fullResync {
		return genesis, nil
	}

	last, err := o.deps.Ledger.GetMostRecentEvent(ctx, pos.ID)
	if err != nil {
		return 0, fmt.Errorf("load most recent event: %w", err)
	}

	lastBlock := genesis
	if last != nil {
		lastBlock = last.BlockNumber
	}
	if finalized < lastBlock {
		return finalized, nil
	}
	return lastBlock, nil
}

// processEvents inserts the merged stream sequentially, carrying the
// accumulator forward. Sequential by construction: each event's deltas depend
// on the prior event's balances.
func (o *Orchestrator) processEvents(ctx context.Context, pos *model.Position, merged []model.RawEvent) (int, error) {
	acc := position.Zero()
	var previousID *string

	recent, err := o.deps.Ledger.GetMostRecentEvent(ctx, pos.ID)
	if err != nil {
		return 0, fmt.Errorf("seed accumulator: %w", err)
	}
	if recent != nil {
		cfg, err := o.deps.Protocol.DecodeConfig(recent.Config)
		if err != nil {
			return 0, fmt.Errorf("decode checkpoint config: %w", err)
		}
		acc = position.FromEvent(recent, cfg)
		previousID = &recent.ID
	}

	eventsAdded := 0
	for _, raw := range merged {
		select {
		case <-ctx.Done():
			return eventsAdded, ctx.Err()
		default:
		}

		price, err := o.deps.Prices.HistoricPrice(ctx, pos.PoolID, raw.BlockNumber)
		if err != nil {
			return eventsAdded, fmt.Errorf("discover price at block %d: %w", raw.BlockNumber, err)
		}
		quote := o.deps.Protocol.QuotePrice(price.SqrtPriceX96)

		comp, err := position.Apply(acc, raw, quote)
		if err != nil {
			return eventsAdded, fmt.Errorf("compute event at block %d: %w", raw.BlockNumber, err)
		}

		liquidityDelta := model.CloneBigInt(raw.Liquidity)
		if raw.EventType == model.EventTypeDecreasePosition {
			liquidityDelta.Neg(liquidityDelta)
		}

		stateJSON, err := o.deps.Protocol.EncodeState(&raw)
		if err != nil {
			return eventsAdded, fmt.Errorf("encode state: %w", err)
		}

		chain, added, err := o.deps.Ledger.AddItem(ctx, pos.ID, ledger.EventInput{
			PreviousID:     previousID,
			Timestamp:      time.Unix(int64(raw.Timestamp), 0).UTC(),
			EventType:      raw.EventType,
			PoolPrice:      comp.PoolPrice,
			Token0Amount:   comp.Token0Amount,
			Token1Amount:   comp.Token1Amount,
			TokenValue:     comp.TokenValue,
			Rewards:        comp.Rewards,
			DeltaCostBasis: comp.DeltaCostBasis,
			CostBasisAfter: comp.CostBasisAfter,
			DeltaPnl:       comp.DeltaPnl,
			PnlAfter:       comp.PnlAfter,
			Config: &protocol.Config{
				ChainID:               pos.ChainID,
				ExternalPositionID:    pos.ExternalID,
				BlockNumber:           raw.BlockNumber,
				TxIndex:               raw.TxIndex,
				LogIndex:              raw.LogIndex,
				TxHash:                raw.TxHash,
				LiquidityDelta:        liquidityDelta,
				LiquidityAfter:        comp.LiquidityAfter,
				UncollectedPrincipal0: comp.UncollectedPrincipal0After,
				UncollectedPrincipal1: comp.UncollectedPrincipal1After,
				SqrtPriceX96:          price.SqrtPriceX96,
			},
			State: stateJSON,
		})
		if err != nil {
			return eventsAdded, err
		}
		if added {
			eventsAdded++
		}
		if len(chain) == 0 {
			return eventsAdded, fmt.Errorf("ledger returned empty chain after insert")
		}

		// A duplicate-hash outcome still advances from the returned
		// chain's head, so partial retries make forward progress.
		head := chain[0]
		headCfg, err := o.deps.Protocol.DecodeConfig(head.Config)
		if err != nil {
			return eventsAdded, fmt.Errorf("decode head config: %w", err)
		}
		acc = position.FromEvent(head, headCfg)
		previousID = &head.ID
	}

	return eventsAdded, nil
}

// reconcilePending removes buffer entries whose transaction was confirmed by
// the indexer, and entries at or below the finality boundary that were never
// observed (dropped transactions, safe to discard).
func (o *Orchestrator) reconcilePending(state *syncstate.State, confirmed map[string]struct{}, finalized uint64) {
	for _, pending := range state.MissingEventsSorted() {
		if _, ok := confirmed[pending.TxHash]; ok {
			state.RemoveMissingEventsByTxHash(pending.TxHash)
			continue
		}
		if pending.BlockNumber <= finalized {
			o.logger.Warn("pending transaction dropped",
				zap.String("position", state.PositionID),
				zap.String("tx_hash", pending.TxHash),
				zap.Uint64("block", pending.BlockNumber),
				zap.Uint64("finalized", finalized),
			)
			state.RemoveMissingEventsByTxHash(pending.TxHash)
		}
	}
}
