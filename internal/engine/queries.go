package engine

import (
	"math/big"

	"LendLedger/internal/registry"
	"LendLedger/internal/risk"
)

// Queries take the engine mutex so every returned view is internally
// consistent with concurrent operations.

// Assets returns the registered asset identifiers.
func (e *Engine) Assets() []string {
	return e.oracle.Assets()
}

// FreeBalance returns the owner's withdrawable collateral in asset.
func (e *Engine) FreeBalance(owner, asset string) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.FreeBalance(owner, asset)
}

// LockedBalance returns the owner's pledged collateral in asset.
func (e *Engine) LockedBalance(owner, asset string) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.LockedBalance(owner, asset)
}

// ActiveLoan returns the ACTIVE loan for the triple together with its
// current health factor.
func (e *Engine) ActiveLoan(owner, borrowAsset, collateralAsset string) (*registry.Loan, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, nil, err
	}
	hf, err := e.calc.LoanHealth(loan, e.now().Unix())
	if err != nil {
		return nil, nil, err
	}
	return loan.Clone(), hf, nil
}

// LoansByOwner lists the owner's loans, optionally filtered by status.
// Closed loans carry their pre-closure amounts.
func (e *Engine) LoansByOwner(owner string, filter ...registry.LoanStatus) []*registry.Loan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.ListByOwner(owner, filter...)
}

// LoanHistory returns the loan by id with pre-closure amounts for closed
// loans.
func (e *Engine) LoanHistory(id string) (*registry.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.registry.History(id)
	if err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// TotalDue returns principal plus interest accrued to now for the triple's
// ACTIVE loan.
func (e *Engine) TotalDue(owner, borrowAsset, collateralAsset string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, err
	}
	return e.params.TotalDebt(loan.Principal, e.now().Unix()-loan.StartTime), nil
}

// PreviewLiquidation quotes the liquidation settlement for the triple's
// ACTIVE loan without acting on it.
func (e *Engine) PreviewLiquidation(owner, borrowAsset, collateralAsset string) (*risk.LiquidationQuote, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, nil, err
	}
	now := e.now().Unix()
	hf, err := e.calc.LoanHealth(loan, now)
	if err != nil {
		return nil, nil, err
	}
	quote, err := e.calc.Quote(loan, now)
	if err != nil {
		return nil, nil, err
	}
	return quote, hf, nil
}

// ValueInUSD converts an asset amount at the latest fresh price.
func (e *Engine) ValueInUSD(asset string, amount *big.Int) (*big.Int, error) {
	return e.oracle.ValueInUSD(asset, amount)
}
