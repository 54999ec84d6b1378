package ledger

import (
	"context"
	"errors"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// ErrSequenceViolation marks an insertion whose previous event is missing or
// belongs to a different position or protocol.
var ErrSequenceViolation = errors.New("ledger sequence violation")

// EventRepository is the persistence contract for ledger events. The chain is
// arena-style storage: rows keyed by id with previous_id as a foreign key,
// traversed by query rather than pointer-following.
type EventRepository interface {
	Insert(ctx context.Context, event *model.LedgerEvent) error

	// FindByID returns nil without error when the id is unknown.
	FindByID(ctx context.Context, id string) (*model.LedgerEvent, error)

	// FindByInputHash returns nil without error when no event under the
	// position carries the hash.
	FindByInputHash(ctx context.Context, positionID, inputHash string) (*model.LedgerEvent, error)

	// FindAll returns a position's events ordered descending by timestamp.
	FindAll(ctx context.Context, positionID string) ([]*model.LedgerEvent, error)

	DeleteAll(ctx context.Context, positionID string) error

	// DeleteFromBlock removes every event of the position with
	// block number >= fromBlock.
	DeleteFromBlock(ctx context.Context, positionID string, fromBlock uint64) error
}
