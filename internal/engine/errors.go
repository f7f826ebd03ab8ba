package engine

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrZeroAmount is returned for operations with a zero or negative amount.
	ErrZeroAmount = errors.New("engine: amount must be positive")

	// ErrSameAsset is returned when the borrow and collateral assets match.
	ErrSameAsset = errors.New("engine: borrow and collateral assets must differ")

	// ErrBreaksHealthFactor is returned when an operation would leave the
	// position below the healthy boundary despite passing the collateral
	// minimum. It guards against rounding at the edge.
	ErrBreaksHealthFactor = errors.New("engine: operation would break health factor")
)

// InsufficientLiquidityError reports a borrow exceeding protocol liquidity.
type InsufficientLiquidityError struct {
	Asset     string
	Available *big.Int
	Requested *big.Int
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("engine: insufficient %s liquidity: available %s, requested %s",
		e.Asset, e.Available, e.Requested)
}

// CollateralBelowMinimumError reports collateral under the required minimum
// for the requested principal.
type CollateralBelowMinimumError struct {
	Required *big.Int
	Supplied *big.Int
}

func (e *CollateralBelowMinimumError) Error() string {
	return fmt.Sprintf("engine: collateral below minimum: required %s, supplied %s",
		e.Required, e.Supplied)
}

// InsufficientFreeCollateralError reports a lock exceeding the owner's free
// balance.
type InsufficientFreeCollateralError struct {
	Free      *big.Int
	Requested *big.Int
}

func (e *InsufficientFreeCollateralError) Error() string {
	return fmt.Sprintf("engine: insufficient free collateral: free %s, requested %s",
		e.Free, e.Requested)
}

// InsufficientRepaymentError reports a repayment below the full amount due.
// Partial repayment is not supported.
type InsufficientRepaymentError struct {
	Supplied *big.Int
	Due      *big.Int
}

func (e *InsufficientRepaymentError) Error() string {
	return fmt.Sprintf("engine: insufficient repayment: supplied %s, due %s", e.Supplied, e.Due)
}

// InsufficientCallerBalanceError reports a repayer whose token balance does
// not cover the amount due, caught before any state changes.
type InsufficientCallerBalanceError struct {
	Balance *big.Int
	Due     *big.Int
}

func (e *InsufficientCallerBalanceError) Error() string {
	return fmt.Sprintf("engine: caller balance %s below amount due %s", e.Balance, e.Due)
}

// HealthFactorAboveMinimumError reports a liquidation attempt on a healthy
// position.
type HealthFactorAboveMinimumError struct {
	HealthFactor *big.Int
}

func (e *HealthFactorAboveMinimumError) Error() string {
	return fmt.Sprintf("engine: position is healthy: health factor %s", e.HealthFactor)
}

// InsufficientCollateralError reports locked collateral that cannot cover
// the liquidation reward.
type InsufficientCollateralError struct {
	Available *big.Int
	Required  *big.Int
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("engine: locked collateral %s below liquidation reward %s",
		e.Available, e.Required)
}

// InsufficientLiquidatorBalanceError reports a liquidator who cannot pay the
// debt being settled.
type InsufficientLiquidatorBalanceError struct {
	Balance *big.Int
	Debt    *big.Int
}

func (e *InsufficientLiquidatorBalanceError) Error() string {
	return fmt.Sprintf("engine: liquidator balance %s below debt %s", e.Balance, e.Debt)
}
