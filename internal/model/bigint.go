package model

import (
	"fmt"
	"math/big"
)

// ParseBigInt parses a base-10 integer string. Empty input decodes to zero.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

// FormatBigInt renders a big integer as a base-10 string. Nil encodes to "0".
func FormatBigInt(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// CloneBigInt returns a copy of value, or zero when value is nil.
func CloneBigInt(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}
