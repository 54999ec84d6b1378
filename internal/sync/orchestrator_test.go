package sync

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/ledger"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol/uniswapv3"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/syncstate"
)

const (
	testChainID = uint64(31337)
	testGenesis = uint64(100)
)

type fakePositions struct {
	positions map[string]*model.Position
}

func (f *fakePositions) GetPosition(_ context.Context, positionID string) (*model.Position, error) {
	pos, ok := f.positions[positionID]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return pos, nil
}

type fakeFinality struct {
	block uint64
	err   error
}

func (f *fakeFinality) LastFinalizedBlock(_ context.Context, _ uint64) (uint64, error) {
	return f.block, f.err
}

type fakeIndexer struct {
	events []model.RawEvent
	err    error
}

func (f *fakeIndexer) FetchEvents(_ context.Context, _ uint64, _ string, fromBlock, _ uint64) ([]model.RawEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.RawEvent, 0, len(f.events))
	for _, event := range f.events {
		if event.BlockNumber >= fromBlock {
			out = append(out, event)
		}
	}
	return out, nil
}

type fakePrices struct{}

func (f *fakePrices) HistoricPrice(_ context.Context, poolID string, blockNumber uint64) (*protocol.PriceState, error) {
	// sqrtPriceX96 = 2^96, a price of exactly 1 token1 per token0.
	return &protocol.PriceState{
		PoolID:       poolID,
		BlockNumber:  blockNumber,
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
	}, nil
}

type fakeApr struct {
	calls int
}

func (f *fakeApr) CalculateAprPeriods(_ context.Context, _ string) ([]*model.AprPeriod, error) {
	f.calls++
	return nil, nil
}

type fixture struct {
	orchestrator *Orchestrator
	ledger       *ledger.Store
	states       *syncstate.MemoryRepository
	indexer      *fakeIndexer
	finality     *fakeFinality
	apr          *fakeApr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	proto := uniswapv3.New(map[uint64]uint64{testChainID: testGenesis})
	ledgerStore := ledger.NewStore(ledger.NewMemoryRepository(), proto, nil)
	states := syncstate.NewMemoryRepository()
	finality := &fakeFinality{block: 250}
	indexer := &fakeIndexer{events: confirmedEvents()}
	aprFake := &fakeApr{}

	positions := &fakePositions{positions: map[string]*model.Position{
		"pos-1": {
			ID:         "pos-1",
			Protocol:   uniswapv3.ProtocolName,
			ChainID:    testChainID,
			PoolID:     "0x00000000000000000000000000000000000000aa",
			ExternalID: "12345",
		},
	}}

	orchestrator := NewOrchestrator(Deps{
		Positions: positions,
		Ledger:    ledgerStore,
		States:    states,
		Apr:       aprFake,
		Finality:  finality,
		Indexer:   indexer,
		Prices:    &fakePrices{},
		Protocol:  proto,
	}, nil)

	return &fixture{
		orchestrator: orchestrator,
		ledger:       ledgerStore,
		states:       states,
		indexer:      indexer,
		finality:     finality,
		apr:          aprFake,
	}
}

func confirmedEvents() []model.RawEvent {
	return []model.RawEvent{
		{
			EventType:   model.EventTypeIncreasePosition,
			ChainID:     testChainID,
			BlockNumber: 120, TxIndex: 0, LogIndex: 1,
			TxHash:    "0xaa",
			Timestamp: 1700000000,
			Liquidity: big.NewInt(1000),
			Amount0:   big.NewInt(100),
			Amount1:   big.NewInt(50),
		},
		{
			EventType:   model.EventTypeDecreasePosition,
			ChainID:     testChainID,
			BlockNumber: 150, TxIndex: 2, LogIndex: 0,
			TxHash:    "0xbb",
			Timestamp: 1700000600,
			Liquidity: big.NewInt(500),
			Amount0:   big.NewInt(60),
			Amount1:   big.NewInt(40),
		},
		{
			EventType:   model.EventTypeCollect,
			ChainID:     testChainID,
			BlockNumber: 180, TxIndex: 1, LogIndex: 4,
			TxHash:    "0xcc",
			Timestamp: 1700001200,
			Amount0:   big.NewInt(80),
			Amount1:   big.NewInt(50),
		},
	}
}

func TestSyncFromEmptyLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1", SyncBy: "test"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.EventsAdded)
	assert.Equal(t, testGenesis, result.FromBlock)
	assert.Equal(t, uint64(250), result.FinalizedBlock)

	chain, err := f.ledger.FindAllItems(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, chain, 3)

	// Newest first; at a price of 1 the collect realizes 20+10 of fees on
	// top of the 25 from the decrease.
	head := chain[0]
	assert.Equal(t, model.EventTypeCollect, head.EventType)
	assert.Equal(t, big.NewInt(55), head.PnlAfter)
	assert.Equal(t, big.NewInt(75), head.CostBasisAfter)

	// The chain links backward without gaps.
	require.NotNil(t, head.PreviousID)
	assert.Equal(t, chain[1].ID, *head.PreviousID)
	require.NotNil(t, chain[1].PreviousID)
	assert.Equal(t, chain[2].ID, *chain[1].PreviousID)
	assert.Nil(t, chain[2].PreviousID)

	assert.Equal(t, 1, f.apr.calls)

	state, err := f.states.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, "test", state.LastSyncBy)
	assert.False(t, state.LastSyncAt.IsZero())
}

func TestSyncResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)

	result, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)

	// The window restarts at the last event's block; only the re-verified
	// tail is rebuilt.
	assert.Equal(t, uint64(180), result.FromBlock)
	assert.Equal(t, 1, result.EventsAdded)

	chain, err := f.ledger.FindAllItems(ctx, "pos-1")
	require.NoError(t, err)
	assert.Len(t, chain, 3)
	assert.Equal(t, big.NewInt(55), chain[0].PnlAfter)
}

func TestSyncFromBlockCappedByFinality(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)

	// Finality regressed below the checkpoint (reorg-safe restart).
	f.finality.block = 150

	result, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(150), result.FromBlock)
}

func TestSyncFullResync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)

	result, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1", FullResync: true})
	require.NoError(t, err)

	assert.Equal(t, testGenesis, result.FromBlock)
	assert.Equal(t, 3, result.EventsAdded)

	chain, err := f.ledger.FindAllItems(ctx, "pos-1")
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestSyncMergesPendingEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A decrease the indexer has not served yet, above the finality boundary.
	state := syncstate.NewState("pos-1")
	state.AddMissingEvents(model.PendingEvent{
		EventType:   model.EventTypeDecreasePosition,
		Timestamp:   1700002000,
		BlockNumber: 260, TxIndex: 0, LogIndex: 0,
		TxHash:    "0xdd",
		Liquidity: big.NewInt(100),
		Amount0:   big.NewInt(12),
		Amount1:   big.NewInt(8),
	})
	require.NoError(t, f.states.Save(ctx, state))

	result, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.EventsAdded)

	chain, err := f.ledger.FindAllItems(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, chain, 4)
	assert.Equal(t, uint64(260), chain[0].BlockNumber)

	// Unconfirmed and above finality: the buffer entry survives the run.
	reloaded, err := f.states.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Len(t, reloaded.PendingEvents, 1)
}

func TestSyncReconcilesPendingBuffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := syncstate.NewState("pos-1")
	state.AddMissingEvents(
		// Confirmed by the indexer under the same tx hash.
		model.PendingEvent{
			EventType:   model.EventTypeIncreasePosition,
			Timestamp:   1700000000,
			BlockNumber: 120, TxIndex: 0, LogIndex: 1,
			TxHash:    "0xaa",
			Liquidity: big.NewInt(1000),
			Amount0:   big.NewInt(100),
			Amount1:   big.NewInt(50),
		},
		// Below finality and never observed: a dropped transaction.
		model.PendingEvent{
			EventType:   model.EventTypeCollect,
			Timestamp:   1700000900,
			BlockNumber: 160, TxIndex: 0, LogIndex: 0,
			TxHash:  "0xdead",
			Amount0: big.NewInt(1),
			Amount1: big.NewInt(1),
		},
	)
	require.NoError(t, f.states.Save(ctx, state))

	_, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)

	reloaded, err := f.states.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Empty(t, reloaded.PendingEvents)
}

func TestSyncEmptyStreamStillRefreshesApr(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.indexer.events = nil

	result, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.EventsAdded)
	assert.Equal(t, 1, f.apr.calls)
}

func TestSyncUnknownPosition(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.SyncLedgerEvents(context.Background(), Params{PositionID: "nope"})
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestSyncUpstreamUnavailable(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	f.finality.err = errors.New("rpc down")
	_, err := f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	f = newFixture(t)
	f.indexer.err = errors.New("indexer down")
	_, err = f.orchestrator.SyncLedgerEvents(ctx, Params{PositionID: "pos-1"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
