package apr

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// fakeEventSource serves a fixed ledger, newest first.
type fakeEventSource struct {
	events []*model.LedgerEvent
}

func (f *fakeEventSource) FindAllItems(_ context.Context, _ string) ([]*model.LedgerEvent, error) {
	out := make([]*model.LedgerEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func ascendingSource(events ...*model.LedgerEvent) *fakeEventSource {
	reversed := make([]*model.LedgerEvent, len(events))
	for i, event := range events {
		reversed[len(events)-1-i] = event
	}
	return &fakeEventSource{events: reversed}
}

func ledgerEvent(id, eventType string, ts int64, costBasisAfter int64, feeValues ...int64) *model.LedgerEvent {
	event := &model.LedgerEvent{
		ID:             id,
		PositionID:     "pos-1",
		EventType:      eventType,
		Timestamp:      time.Unix(ts, 0).UTC(),
		CostBasisAfter: big.NewInt(costBasisAfter),
	}
	for _, value := range feeValues {
		event.Rewards = append(event.Rewards, model.Reward{
			TokenAmount: big.NewInt(0),
			TokenValue:  big.NewInt(value),
		})
	}
	return event
}

func TestCalculateAprPeriodsSingle(t *testing.T) {
	ctx := context.Background()
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 0, 1000),
		ledgerEvent("e2", model.EventTypeIncreasePosition, 50_000, 1000),
		ledgerEvent("c3", model.EventTypeCollect, 100_000, 1000, 30, 10),
	)
	calc := NewCalculator(source, NewMemoryPeriodRepository(), nil)

	periods, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, periods, 1)

	period := periods[0]
	assert.Equal(t, "e1", period.StartEventID)
	assert.Equal(t, "c3", period.EndEventID)
	assert.Equal(t, uint64(100_000), period.DurationSeconds)
	assert.Equal(t, 3, period.EventCount)
	assert.Equal(t, big.NewInt(1000), period.CostBasis)
	assert.Equal(t, big.NewInt(40), period.CollectedFeeValue)

	// 40 * 10000 * secondsPerYear / (1000 * 100000)
	assert.Equal(t, int64(126_144), period.AprBps)
}

func TestCalculateAprPeriodsSharedBoundary(t *testing.T) {
	ctx := context.Background()
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 0, 1000),
		ledgerEvent("c2", model.EventTypeCollect, 100_000, 1000, 40),
		ledgerEvent("c3", model.EventTypeCollect, 200_000, 1000, 60),
	)
	calc := NewCalculator(source, NewMemoryPeriodRepository(), nil)

	periods, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, periods, 2)

	// Descending by start time: periods[1] is the first chronologically.
	first, second := periods[1], periods[0]

	assert.Equal(t, "e1", first.StartEventID)
	assert.Equal(t, "c2", first.EndEventID)
	assert.Equal(t, big.NewInt(40), first.CollectedFeeValue)

	// The boundary COLLECT closes one period and opens the next.
	assert.Equal(t, "c2", second.StartEventID)
	assert.Equal(t, "c3", second.EndEventID)
	assert.Equal(t, big.NewInt(60), second.CollectedFeeValue)
	assert.Equal(t, int64(189_216), second.AprBps)
}

func TestCalculateAprPeriodsTrailingPartial(t *testing.T) {
	ctx := context.Background()
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 0, 1000),
		ledgerEvent("c2", model.EventTypeCollect, 100_000, 1000, 40),
		ledgerEvent("e3", model.EventTypeIncreasePosition, 150_000, 2000),
	)
	calc := NewCalculator(source, NewMemoryPeriodRepository(), nil)

	periods, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, periods, 2)

	trailing := periods[0]
	assert.Equal(t, "c2", trailing.StartEventID)
	assert.Equal(t, "e3", trailing.EndEventID)

	// An open period has collected nothing yet.
	assert.Equal(t, int64(0), trailing.CollectedFeeValue.Int64())
	assert.Equal(t, int64(0), trailing.AprBps)
}

func TestCalculateAprPeriodsNoTrailingAfterCollect(t *testing.T) {
	ctx := context.Background()
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 0, 1000),
		ledgerEvent("c2", model.EventTypeCollect, 100_000, 1000, 40),
	)
	calc := NewCalculator(source, NewMemoryPeriodRepository(), nil)

	periods, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)

	// The COLLECT seeds a next period, but alone it is not one.
	require.Len(t, periods, 1)
	assert.Equal(t, "c2", periods[0].EndEventID)
}

func TestCalculateAprPeriodsDegenerate(t *testing.T) {
	ctx := context.Background()

	// Both events share a timestamp, so the period has no duration.
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 100_000, 1000),
		ledgerEvent("c2", model.EventTypeCollect, 100_000, 1000, 40),
	)
	calc := NewCalculator(source, NewMemoryPeriodRepository(), nil)

	periods, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, periods, 1)

	assert.Equal(t, int64(0), periods[0].AprBps)
	assert.Equal(t, uint64(0), periods[0].DurationSeconds)
	assert.Equal(t, big.NewInt(40), periods[0].CollectedFeeValue)
}

func TestCalculateAprPeriodsEmptyLedger(t *testing.T) {
	calc := NewCalculator(&fakeEventSource{}, NewMemoryPeriodRepository(), nil)

	periods, err := calc.CalculateAprPeriods(context.Background(), "pos-1")
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestCalculateAprPeriodsReplacesOldSet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPeriodRepository()
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 0, 1000),
		ledgerEvent("c2", model.EventTypeCollect, 100_000, 1000, 40),
	)
	calc := NewCalculator(source, repo, nil)

	_, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)
	_, err = calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)

	stored, err := repo.FindAll(ctx, "pos-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCurrentAndAverageApr(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPeriodRepository()
	source := ascendingSource(
		ledgerEvent("e1", model.EventTypeIncreasePosition, 0, 1000),
		ledgerEvent("c2", model.EventTypeCollect, 100_000, 1000, 40),
		ledgerEvent("c3", model.EventTypeCollect, 200_000, 1000, 60),
	)
	calc := NewCalculator(source, repo, nil)

	_, err := calc.CalculateAprPeriods(ctx, "pos-1")
	require.NoError(t, err)

	current, ok, err := calc.GetCurrentApr(ctx, "pos-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(189_216), current)

	average, ok, err := calc.GetAverageApr(ctx, "pos-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(157_680), average)
}

func TestAprWithoutPeriods(t *testing.T) {
	calc := NewCalculator(&fakeEventSource{}, NewMemoryPeriodRepository(), nil)

	_, ok, err := calc.GetCurrentApr(context.Background(), "pos-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = calc.GetAverageApr(context.Background(), "pos-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
