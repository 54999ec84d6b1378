package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
	"github.com/0xNedAlbo/midcurve-services-sub002/internal/protocol"
)

// EventInput carries everything needed to append one event to a position's
// chain. Block coordinates live in Config; the store lifts them into
// first-class columns and derives the input hash from them.
type EventInput struct {
	PreviousID *string
	Timestamp  time.Time
	EventType  string

	PoolPrice    *big.Int
	Token0Amount *big.Int
	Token1Amount *big.Int
	TokenValue   *big.Int
	Rewards      []model.Reward

	DeltaCostBasis *big.Int
	CostBasisAfter *big.Int
	DeltaPnl       *big.Int
	PnlAfter       *big.Int

	Config *protocol.Config
	State  json.RawMessage
}

// Store is the append-only ledger event store. Insertion is idempotent on the
// input hash and validates chain sequencing; events are never updated.
type Store struct {
	repo   EventRepository
	proto  protocol.Protocol
	logger *zap.Logger
}

// NewStore builds a ledger store around a repository and a protocol.
func NewStore(repo EventRepository, proto protocol.Protocol, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, proto: proto, logger: logger}
}

// AddItem appends one event to the position's chain and returns the full
// chain, newest first. Re-insertion of an event with a known input hash is a
// no-op that returns the unchanged chain and added=false.
func (s *Store) AddItem(ctx context.Context, positionID string, input EventInput) ([]*model.LedgerEvent, bool, error) {
	if input.Config == nil {
		return nil, false, fmt.Errorf("event config is required")
	}

	if input.PreviousID != nil {
		previous, err := s.repo.FindByID(ctx, *input.PreviousID)
		if err != nil {
			return nil, false, fmt.Errorf("load previous event: %w", err)
		}
		if previous == nil {
			return nil, false, fmt.Errorf("%w: previous event %s not found", ErrSequenceViolation, *input.PreviousID)
		}
		if previous.PositionID != positionID {
			return nil, false, fmt.Errorf("%w: previous event %s belongs to position %s", ErrSequenceViolation, previous.ID, previous.PositionID)
		}
		if previous.Protocol != s.proto.Name() {
			return nil, false, fmt.Errorf("%w: previous event %s belongs to protocol %s", ErrSequenceViolation, previous.ID, previous.Protocol)
		}
	}

	cfg := input.Config
	inputHash := s.proto.InputHash(cfg.ChainID, cfg.BlockNumber, cfg.TxIndex, cfg.LogIndex)

	existing, err := s.repo.FindByInputHash(ctx, positionID, inputHash)
	if err != nil {
		return nil, false, fmt.Errorf("check input hash: %w", err)
	}
	if existing != nil {
		s.logger.Debug("duplicate ledger event skipped",
			zap.String("position", positionID),
			zap.String("input_hash", inputHash),
			zap.Uint64("block", cfg.BlockNumber),
		)
		chain, err := s.repo.FindAll(ctx, positionID)
		if err != nil {
			return nil, false, err
		}
		return chain, false, nil
	}

	config, err := s.proto.EncodeConfig(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("encode config: %w", err)
	}

	event := &model.LedgerEvent{
		ID:             uuid.NewString(),
		PositionID:     positionID,
		Protocol:       s.proto.Name(),
		PreviousID:     input.PreviousID,
		Timestamp:      input.Timestamp,
		EventType:      input.EventType,
		InputHash:      inputHash,
		BlockNumber:    cfg.BlockNumber,
		TxIndex:        cfg.TxIndex,
		LogIndex:       cfg.LogIndex,
		TxHash:         cfg.TxHash,
		PoolPrice:      model.CloneBigInt(input.PoolPrice),
		Token0Amount:   model.CloneBigInt(input.Token0Amount),
		Token1Amount:   model.CloneBigInt(input.Token1Amount),
		TokenValue:     model.CloneBigInt(input.TokenValue),
		Rewards:        input.Rewards,
		DeltaCostBasis: model.CloneBigInt(input.DeltaCostBasis),
		CostBasisAfter: model.CloneBigInt(input.CostBasisAfter),
		DeltaPnl:       model.CloneBigInt(input.DeltaPnl),
		PnlAfter:       model.CloneBigInt(input.PnlAfter),
		Config:         config,
		State:          input.State,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return nil, false, fmt.Errorf("insert event: %w", err)
	}

	chain, err := s.repo.FindAll(ctx, positionID)
	if err != nil {
		return nil, false, err
	}
	return chain, true, nil
}

// FindAllItems returns the position's events ordered descending by timestamp.
func (s *Store) FindAllItems(ctx context.Context, positionID string) ([]*model.LedgerEvent, error) {
	return s.repo.FindAll(ctx, positionID)
}

// GetMostRecentEvent returns the newest event, or nil for an empty chain.
// It is the position's authoritative current state.
func (s *Store) GetMostRecentEvent(ctx context.Context, positionID string) (*model.LedgerEvent, error) {
	chain, err := s.repo.FindAll(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain[0], nil
}

// DeleteAllItems discards the position's full history. Idempotent; used only
// by the sync orchestrator for rebuilds.
func (s *Store) DeleteAllItems(ctx context.Context, positionID string) error {
	return s.repo.DeleteAll(ctx, positionID)
}

// DeleteFromBlock discards the trailing window of the chain starting at
// fromBlock, for rebuild-from-checkpoint.
func (s *Store) DeleteFromBlock(ctx context.Context, positionID string, fromBlock uint64) error {
	return s.repo.DeleteFromBlock(ctx, positionID, fromBlock)
}
