// Package risk holds the pure pricing math of the protocol: interest
// accrual, health-factor computation, and liquidation quotes. Everything
// here is side-effect free and deterministic given inputs.
package risk

import (
	"fmt"
	"math/big"
)

// SecondsPerYear is the accrual year used by the simple-interest formula.
const SecondsPerYear = 365 * 24 * 60 * 60

// Params are the protocol risk parameters, expressed in whole percent.
type Params struct {
	// LiquidationThresholdPct discounts collateral value when computing the
	// health factor, and sets the minimum collateral ratio at open.
	LiquidationThresholdPct int64
	// InterestRatePct is the simple annual rate applied to principal.
	InterestRatePct int64
	// LiquidationBonusPct is the liquidator's premium over the debt value.
	LiquidationBonusPct int64
}

// DefaultParams mirrors the deployed configuration defaults.
func DefaultParams() Params {
	return Params{
		LiquidationThresholdPct: 80,
		InterestRatePct:         3,
		LiquidationBonusPct:     10,
	}
}

// Validate rejects parameter combinations the math cannot support.
func (p Params) Validate() error {
	if p.LiquidationThresholdPct <= 0 || p.LiquidationThresholdPct > 100 {
		return fmt.Errorf("risk: liquidation threshold must be in (0, 100], got %d", p.LiquidationThresholdPct)
	}
	if p.InterestRatePct < 0 {
		return fmt.Errorf("risk: interest rate must be non-negative, got %d", p.InterestRatePct)
	}
	if p.LiquidationBonusPct < 0 || p.LiquidationBonusPct >= 100 {
		return fmt.Errorf("risk: liquidation bonus must be in [0, 100), got %d", p.LiquidationBonusPct)
	}
	return nil
}

// AccruedInterest computes simple non-compounding interest on principal
// over the elapsed seconds:
//
//	principal * ratePct * elapsed / (SecondsPerYear * 100)
//
// Division floors. Negative elapsed (clock skew) accrues nothing.
func (p Params) AccruedInterest(principal *big.Int, elapsedSeconds int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || elapsedSeconds <= 0 || p.InterestRatePct == 0 {
		return new(big.Int)
	}
	interest := new(big.Int).Mul(principal, big.NewInt(p.InterestRatePct))
	interest.Mul(interest, big.NewInt(elapsedSeconds))
	return interest.Quo(interest, big.NewInt(SecondsPerYear*100))
}

// TotalDebt is principal plus accrued interest.
func (p Params) TotalDebt(principal *big.Int, elapsedSeconds int64) *big.Int {
	return new(big.Int).Add(principal, p.AccruedInterest(principal, elapsedSeconds))
}

// MinCollateralUSD returns the minimum collateral value (USD, 18 decimals)
// required to back debtUSD at the liquidation threshold:
//
//	debtUSD * 100 / thresholdPct
//
// Rounds up so the floor of the later health-factor division never dips
// below one for a position opened at exactly the minimum.
func (p Params) MinCollateralUSD(debtUSD *big.Int) *big.Int {
	num := new(big.Int).Mul(debtUSD, big.NewInt(100))
	den := big.NewInt(p.LiquidationThresholdPct)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
