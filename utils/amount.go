package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DecimalFromBig converts an on-chain integer (wei-style base units) into a decimal.
// A nil value is treated as zero.
func DecimalFromBig(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}
