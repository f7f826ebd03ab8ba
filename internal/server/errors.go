package server

import (
	"errors"
	"net/http"

	"LendLedger/internal/engine"
	"LendLedger/internal/ledger"
	"LendLedger/internal/oracle"
	"LendLedger/internal/registry"
	"LendLedger/internal/token"
)

// classify maps an engine error to an HTTP status and a rejection-reason
// label for metrics.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrZeroAmount):
		return http.StatusBadRequest, "zero_amount"
	case errors.Is(err, engine.ErrSameAsset):
		return http.StatusBadRequest, "same_asset"
	case errors.Is(err, oracle.ErrUnsupportedAsset):
		return http.StatusBadRequest, "unsupported_asset"
	case errors.Is(err, registry.ErrNoLoanFound):
		return http.StatusNotFound, "no_loan"
	case errors.Is(err, registry.ErrActiveLoanExists):
		return http.StatusConflict, "active_loan_exists"
	case errors.Is(err, engine.ErrBreaksHealthFactor):
		return http.StatusUnprocessableEntity, "breaks_health_factor"
	}

	var staleErr *oracle.StalePriceError
	if errors.As(err, &staleErr) {
		return http.StatusServiceUnavailable, "stale_price"
	}
	var transferErr *token.TransferFailedError
	if errors.As(err, &transferErr) {
		return http.StatusBadGateway, "transfer_failed"
	}

	var balanceErr *ledger.InsufficientBalanceError
	var liquidityErr *engine.InsufficientLiquidityError
	var collMinErr *engine.CollateralBelowMinimumError
	var freeCollErr *engine.InsufficientFreeCollateralError
	var repayErr *engine.InsufficientRepaymentError
	var callerBalErr *engine.InsufficientCallerBalanceError
	var healthyErr *engine.HealthFactorAboveMinimumError
	var collErr *engine.InsufficientCollateralError
	var liqBalErr *engine.InsufficientLiquidatorBalanceError
	switch {
	case errors.As(err, &balanceErr):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.As(err, &liquidityErr):
		return http.StatusUnprocessableEntity, "insufficient_liquidity"
	case errors.As(err, &collMinErr):
		return http.StatusUnprocessableEntity, "collateral_below_minimum"
	case errors.As(err, &freeCollErr):
		return http.StatusUnprocessableEntity, "insufficient_free_collateral"
	case errors.As(err, &repayErr):
		return http.StatusUnprocessableEntity, "insufficient_repayment"
	case errors.As(err, &callerBalErr):
		return http.StatusUnprocessableEntity, "insufficient_caller_balance"
	case errors.As(err, &healthyErr):
		return http.StatusConflict, "position_healthy"
	case errors.As(err, &collErr):
		return http.StatusUnprocessableEntity, "insufficient_collateral"
	case errors.As(err, &liqBalErr):
		return http.StatusUnprocessableEntity, "insufficient_liquidator_balance"
	}

	return http.StatusInternalServerError, "internal"
}
