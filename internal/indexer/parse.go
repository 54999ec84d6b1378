package indexer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xNedAlbo/midcurve-services-sub002/internal/model"
)

// parseLog decodes one NonfungiblePositionManager log into a raw event.
func parseLog(npmABI abi.ABI, chainID uint64, log types.Log, timestamp uint64) (model.RawEvent, error) {
	if len(log.Topics) < 2 {
		return model.RawEvent{}, fmt.Errorf("log %s:%d missing topics", log.TxHash.Hex(), log.Index)
	}

	event, err := npmABI.EventByID(log.Topics[0])
	if err != nil {
		return model.RawEvent{}, fmt.Errorf("unknown topic0 %s: %w", log.Topics[0].Hex(), err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.RawEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	tokenID := new(big.Int).SetBytes(log.Topics[1].Bytes())

	raw := model.RawEvent{
		ChainID:            chainID,
		ExternalPositionID: tokenID.String(),
		BlockNumber:        log.BlockNumber,
		TxIndex:            uint64(log.TxIndex),
		LogIndex:           uint64(log.Index),
		TxHash:             log.TxHash.Hex(),
		Timestamp:          timestamp,
	}

	switch event.Name {
	case "IncreaseLiquidity":
		raw.EventType = model.EventTypeIncreasePosition
		liquidity, amount0, amount1, err := unpackLiquidityAmounts(values)
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("%s: %w", event.Name, err)
		}
		raw.Liquidity = liquidity
		raw.Amount0 = amount0
		raw.Amount1 = amount1

	case "DecreaseLiquidity":
		raw.EventType = model.EventTypeDecreasePosition
		liquidity, amount0, amount1, err := unpackLiquidityAmounts(values)
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("%s: %w", event.Name, err)
		}
		raw.Liquidity = liquidity
		raw.Amount0 = amount0
		raw.Amount1 = amount1

	case "Collect":
		raw.EventType = model.EventTypeCollect
		if len(values) != 3 {
			return model.RawEvent{}, fmt.Errorf("collect payload size %d", len(values))
		}
		recipient, ok := values[0].(common.Address)
		if !ok {
			return model.RawEvent{}, fmt.Errorf("collect recipient type %T", values[0])
		}
		amount0, err := bigIntValue(values[1])
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("collect amount0: %w", err)
		}
		amount1, err := bigIntValue(values[2])
		if err != nil {
			return model.RawEvent{}, fmt.Errorf("collect amount1: %w", err)
		}
		raw.Recipient = recipient.Hex()
		raw.Amount0 = amount0
		raw.Amount1 = amount1

	default:
		return model.RawEvent{}, fmt.Errorf("unsupported event: %s", event.Name)
	}

	return raw, nil
}

func unpackLiquidityAmounts(values []interface{}) (*big.Int, *big.Int, *big.Int, error) {
	if len(values) != 3 {
		return nil, nil, nil, fmt.Errorf("payload size %d", len(values))
	}
	liquidity, err := bigIntValue(values[0])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("liquidity: %w", err)
	}
	amount0, err := bigIntValue(values[1])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := bigIntValue(values[2])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("amount1: %w", err)
	}
	return liquidity, amount0, amount1, nil
}

func bigIntValue(value interface{}) (*big.Int, error) {
	parsed, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return new(big.Int).Set(parsed), nil
}
