package apr

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

const secondsPerYear = 365 * 24 * 60 * 60

// EventSource yields a position's ledger, newest first. Satisfied by the
// ledger store.
type EventSource interface {
	FindAllItems(ctx context.Context, positionID string) ([]*model.LedgerEvent, error)
}

// Calculator derives fee-return periods from the ledger. The whole period set
// is recomputed wholesale on every refresh; periods are never patched.
type Calculator struct {
	events  EventSource
	periods PeriodRepository
	logger  *zap.Logger
}

func NewCalculator(events EventSource, periods PeriodRepository, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{events: events, periods: periods, logger: logger}
}

// CalculateAprPeriods deletes the position's periods and rebuilds them from
// the full ledger. The returned slice is ordered descending by start time.
func (c *Calculator) CalculateAprPeriods(ctx context.Context, positionID string) ([]*model.AprPeriod, error) {
	if err := c.periods.DeleteAll(ctx, positionID); err != nil {
		return nil, fmt.Errorf("delete periods: %w", err)
	}

	chain, err := c.events.FindAllItems(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	ascending := make([]*model.LedgerEvent, len(chain))
	for i, event := range chain {
		ascending[len(chain)-1-i] = event
	}

	partitions := partitionAtCollects(ascending)

	periods := make([]*model.AprPeriod, 0, len(partitions))
	for _, events := range partitions {
		periods = append(periods, c.buildPeriod(positionID, events))
	}

	if err := c.periods.InsertAll(ctx, periods); err != nil {
		return nil, fmt.Errorf("insert periods: %w", err)
	}

	// Descending by start time for callers.
	for i, j := 0, len(periods)-1; i < j; i, j = i+1, j-1 {
		periods[i], periods[j] = periods[j], periods[i]
	}
	return periods, nil
}

// GetCurrentApr returns the most recent period's rate in basis points.
// ok is false when the position has no periods.
func (c *Calculator) GetCurrentApr(ctx context.Context, positionID string) (int64, bool, error) {
	periods, err := c.periods.FindAll(ctx, positionID)
	if err != nil {
		return 0, false, err
	}
	if len(periods) == 0 {
		return 0, false, nil
	}
	return periods[0].AprBps, true, nil
}

// GetAverageApr returns the unweighted arithmetic mean across all periods in
// basis points. ok is false when the position has no periods.
func (c *Calculator) GetAverageApr(ctx context.Context, positionID string) (int64, bool, error) {
	periods, err := c.periods.FindAll(ctx, positionID)
	if err != nil {
		return 0, false, err
	}
	if len(periods) == 0 {
		return 0, false, nil
	}

	rates := make([]decimal.Decimal, len(periods))
	for i, period := range periods {
		rates[i] = decimal.NewFromInt(period.AprBps)
	}
	mean := decimal.Avg(rates[0], rates[1:]...)
	return mean.Round(0).IntPart(), true, nil
}

// partitionAtCollects splits the ascending ledger into periods at each
// COLLECT event. A COLLECT is the last element of its period and the first of
// the next, so consecutive periods share their boundary event. A trailing
// partial period is kept only when it has events beyond the prior COLLECT.
func partitionAtCollects(events []*model.LedgerEvent) [][]*model.LedgerEvent {
	partitions := make([][]*model.LedgerEvent, 0)
	current := make([]*model.LedgerEvent, 0)

	for _, event := range events {
		current = append(current, event)
		if event.EventType == model.EventTypeCollect {
			partitions = append(partitions, current)
			current = []*model.LedgerEvent{event}
		}
	}

	if len(current) > 1 || (len(partitions) == 0 && len(current) > 0) {
		partitions = append(partitions, current)
	}
	return partitions
}

func (c *Calculator) buildPeriod(positionID string, events []*model.LedgerEvent) *model.AprPeriod {
	start := events[0]
	end := events[len(events)-1]

	duration := uint64(0)
	if end.Timestamp.After(start.Timestamp) {
		duration = uint64(end.Timestamp.Sub(start.Timestamp) / time.Second)
	}

	costBasis := timeWeightedCostBasis(events, duration)

	// COLLECT events inside a period are only the closing one (a leading
	// boundary COLLECT already closed the previous period).
	feeValue := big.NewInt(0)
	if end.EventType == model.EventTypeCollect {
		for _, reward := range end.Rewards {
			feeValue.Add(feeValue, model.CloneBigInt(reward.TokenValue))
		}
	}

	period := &model.AprPeriod{
		ID:                uuid.NewString(),
		PositionID:        positionID,
		StartEventID:      start.ID,
		EndEventID:        end.ID,
		StartTimestamp:    start.Timestamp,
		EndTimestamp:      end.Timestamp,
		DurationSeconds:   duration,
		CostBasis:         costBasis,
		CollectedFeeValue: feeValue,
		EventCount:        len(events),
		CreatedAt:         time.Now().UTC(),
	}

	if duration == 0 || costBasis.Sign() <= 0 {
		// Skip the calculation, not the period.
		c.logger.Warn("degenerate apr period",
			zap.String("position", positionID),
			zap.String("start_event", start.ID),
			zap.Uint64("duration_seconds", duration),
			zap.String("cost_basis", model.FormatBigInt(costBasis)),
		)
		period.AprBps = 0
		period.DurationSeconds = 0
		return period
	}

	// aprBps = fees * 10000 * secondsPerYear / (costBasis * duration)
	numerator := new(big.Int).Mul(feeValue, big.NewInt(10_000))
	numerator.Mul(numerator, big.NewInt(secondsPerYear))
	denominator := new(big.Int).Mul(costBasis, new(big.Int).SetUint64(duration))
	period.AprBps = new(big.Int).Quo(numerator, denominator).Int64()
	return period
}

// timeWeightedCostBasis averages the cost basis across the period's
// sub-intervals, each weighted by the elapsed time since the previous event.
func timeWeightedCostBasis(events []*model.LedgerEvent, duration uint64) *big.Int {
	if duration == 0 {
		return model.CloneBigInt(events[0].CostBasisAfter)
	}

	weighted := big.NewInt(0)
	for i := 1; i < len(events); i++ {
		elapsed := events[i].Timestamp.Sub(events[i-1].Timestamp) / time.Second
		if elapsed <= 0 {
			continue
		}
		interval := new(big.Int).Mul(events[i-1].CostBasisAfter, big.NewInt(int64(elapsed)))
		weighted.Add(weighted, interval)
	}
	return weighted.Quo(weighted, new(big.Int).SetUint64(duration))
}
