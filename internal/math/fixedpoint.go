package math

import "math/big"

// DecimalConfig defines fixed-point precision for one value domain.
type DecimalConfig struct {
	DecimalPrecision int      // Number of decimal places
	Scale            *big.Int // 10^DecimalPrecision
}

var (
	// AmountConfig covers asset amounts and USD values (WAD, 18 decimals).
	AmountConfig = DecimalConfig{DecimalPrecision: 18, Scale: mustBigInt("1000000000000000000")}
	// PriceConfig covers oracle prices (8 decimals, uniform across feeds).
	PriceConfig = DecimalConfig{DecimalPrecision: 8, Scale: big.NewInt(100_000_000)}
)

// Wad is the 18-decimal fixed-point unit (1.0).
var Wad = AmountConfig.Scale

// PriceScale is the 8-decimal oracle price unit (1.0).
var PriceScale = PriceConfig.Scale

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// MulDiv computes a * b / denom with flooring division.
// All conversions in the ledger floor toward zero so the protocol never
// rounds value in the caller's favor.
func MulDiv(a, b, denom *big.Int) *big.Int {
	if a == nil || b == nil || denom == nil || denom.Sign() == 0 {
		return new(big.Int)
	}
	result := new(big.Int).Mul(a, b)
	return result.Quo(result, denom)
}

// ValueFromPrice converts an 18-decimal amount priced at an 8-decimal price
// into an 18-decimal USD value.
func ValueFromPrice(amount, price *big.Int) *big.Int {
	return MulDiv(amount, price, PriceScale)
}

// AmountFromValue converts an 18-decimal USD value back into an asset amount
// at an 8-decimal price.
func AmountFromValue(usdValue, price *big.Int) *big.Int {
	return MulDiv(usdValue, PriceScale, price)
}

// IsZero reports whether v is nil or zero.
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// IsPositive reports whether v is non-nil and strictly positive.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// Clone returns a defensive copy of v (zero for nil).
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
