package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// eventLine is the JSONL export shape of a ledger event. Big integers are
// written as base-10 strings.
type eventLine struct {
	ID             string          `json:"id"`
	PositionID     string          `json:"position_id"`
	Protocol       string          `json:"protocol"`
	PreviousID     *string         `json:"previous_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	EventType      string          `json:"event_type"`
	InputHash      string          `json:"input_hash"`
	BlockNumber    uint64          `json:"block_number"`
	TxIndex        uint64          `json:"tx_index"`
	LogIndex       uint64          `json:"log_index"`
	TxHash         string          `json:"tx_hash"`
	PoolPrice      string          `json:"pool_price"`
	Token0Amount   string          `json:"token0_amount"`
	Token1Amount   string          `json:"token1_amount"`
	TokenValue     string          `json:"token_value"`
	Rewards        []model.Reward  `json:"rewards,omitempty"`
	DeltaCostBasis string          `json:"delta_cost_basis"`
	CostBasisAfter string          `json:"cost_basis_after"`
	DeltaPnl       string          `json:"delta_pnl"`
	PnlAfter       string          `json:"pnl_after"`
	Config         json.RawMessage `json:"config,omitempty"`
	State          json.RawMessage `json:"state,omitempty"`
}

// JsonlExporter appends ledger events to a JSONL file.
type JsonlExporter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlExporter(path string) *JsonlExporter {
	return &JsonlExporter{path: path}
}

// PutEventBatch appends a batch of ledger events as JSON lines.
func (s *JsonlExporter) PutEventBatch(events []*model.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, event := range events {
		line, err := json.Marshal(toEventLine(event))
		if err != nil {
			return fmt.Errorf("marshal ledger event: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write ledger event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

func toEventLine(event *model.LedgerEvent) eventLine {
	return eventLine{
		ID:             event.ID,
		PositionID:     event.PositionID,
		Protocol:       event.Protocol,
		PreviousID:     event.PreviousID,
		Timestamp:      event.Timestamp,
		EventType:      event.EventType,
		InputHash:      event.InputHash,
		BlockNumber:    event.BlockNumber,
		TxIndex:        event.TxIndex,
		LogIndex:       event.LogIndex,
		TxHash:         event.TxHash,
		PoolPrice:      model.FormatBigInt(event.PoolPrice),
		Token0Amount:   model.FormatBigInt(event.Token0Amount),
		Token1Amount:   model.FormatBigInt(event.Token1Amount),
		TokenValue:     model.FormatBigInt(event.TokenValue),
		Rewards:        event.Rewards,
		DeltaCostBasis: model.FormatBigInt(event.DeltaCostBasis),
		CostBasisAfter: model.FormatBigInt(event.CostBasisAfter),
		DeltaPnl:       model.FormatBigInt(event.DeltaPnl),
		PnlAfter:       model.FormatBigInt(event.PnlAfter),
		Config:         event.Config,
		State:          event.State,
	}
}
