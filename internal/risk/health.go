package risk

import (
	"math/big"

	fpmath "LendLedger/internal/math"
)

// MaxHealthFactor is returned when a position has no debt. It is the
// largest 256-bit value, matching the convention of on-chain lending
// markets.
var MaxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MinHealthyFactor is the liquidation boundary: 1.0 in WAD. A position is
// liquidatable strictly below it.
var MinHealthyFactor = new(big.Int).Set(fpmath.Wad)

// HealthFactor computes the WAD-scaled ratio of threshold-discounted
// collateral value to debt value:
//
//	(collateralUSD * thresholdPct / 100) * 1e18 / debtUSD
//
// Both inputs are 18-decimal USD values. Division floors at each step.
func (p Params) HealthFactor(collateralUSD, debtUSD *big.Int) *big.Int {
	if debtUSD == nil || debtUSD.Sign() <= 0 {
		return new(big.Int).Set(MaxHealthFactor)
	}
	adjusted := new(big.Int).Mul(collateralUSD, big.NewInt(p.LiquidationThresholdPct))
	adjusted.Quo(adjusted, big.NewInt(100))
	return fpmath.MulDiv(adjusted, fpmath.Wad, debtUSD)
}

// IsHealthy reports whether the health factor is at or above 1.0.
func IsHealthy(hf *big.Int) bool {
	return hf.Cmp(MinHealthyFactor) >= 0
}
