package model

import (
	"math/big"
	"time"
)

// AprPeriod is a fee-return period derived from the ledger. Periods are never
// authored independently: the whole set for a position is deleted and
// recomputed from the full ledger on every refresh.
type AprPeriod struct {
	ID           string
	PositionID   string
	StartEventID string
	EndEventID   string

	StartTimestamp  time.Time
	EndTimestamp    time.Time
	DurationSeconds uint64

	// CostBasis is the time-weighted average cost basis over the period.
	CostBasis         *big.Int
	CollectedFeeValue *big.Int
	AprBps            int64
	EventCount        int

	CreatedAt time.Time
}
