package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/apr"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// PeriodStore implements apr.PeriodRepository on Postgres.
type PeriodStore struct {
	store *Store
}

var _ apr.PeriodRepository = (*PeriodStore)(nil)

func NewPeriodStore(store *Store) *PeriodStore {
	return &PeriodStore{store: store}
}

func (s *PeriodStore) DeleteAll(ctx context.Context, positionID string) error {
	_, err := s.store.pool.Exec(ctx,
		`DELETE FROM apr_periods WHERE position_id = $1`, positionID)
	return err
}

func (s *PeriodStore) InsertAll(ctx context.Context, periods []*model.AprPeriod) error {
	if len(periods) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, period := range periods {
		batch.Queue(`
			INSERT INTO apr_periods (
				id, position_id, start_event_id, end_event_id,
				start_ts, end_ts, duration_seconds,
				cost_basis, collected_fee_value, apr_bps, event_count, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12)`,
			period.ID, period.PositionID, period.StartEventID, period.EndEventID,
			period.StartTimestamp, period.EndTimestamp, period.DurationSeconds,
			model.FormatBigInt(period.CostBasis),
			model.FormatBigInt(period.CollectedFeeValue),
			period.AprBps, period.EventCount, period.CreatedAt,
		)
	}
	result := s.store.pool.SendBatch(ctx, batch)
	defer result.Close()
	for range periods {
		if _, err := result.Exec(); err != nil {
			return fmt.Errorf("insert apr period: %w", err)
		}
	}
	return nil
}

func (s *PeriodStore) FindAll(ctx context.Context, positionID string) ([]*model.AprPeriod, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT id, position_id, start_event_id, end_event_id,
			start_ts, end_ts, duration_seconds,
			cost_basis::text, collected_fee_value::text, apr_bps, event_count, created_at
		FROM apr_periods
		WHERE position_id = $1
		ORDER BY start_ts DESC`, positionID)
	if err != nil {
		return nil, fmt.Errorf("query apr periods: %w", err)
	}
	defer rows.Close()

	var periods []*model.AprPeriod
	for rows.Next() {
		var (
			period    model.AprPeriod
			costBasis string
			feeValue  string
		)
		err := rows.Scan(
			&period.ID, &period.PositionID, &period.StartEventID, &period.EndEventID,
			&period.StartTimestamp, &period.EndTimestamp, &period.DurationSeconds,
			&costBasis, &feeValue, &period.AprBps, &period.EventCount, &period.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if period.CostBasis, err = model.ParseBigInt(costBasis); err != nil {
			return nil, err
		}
		if period.CollectedFeeValue, err = model.ParseBigInt(feeValue); err != nil {
			return nil, err
		}
		periods = append(periods, &period)
	}
	return periods, rows.Err()
}
