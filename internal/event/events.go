// Package event defines the lifecycle events emitted by the engine and the
// envelope that chains them into a tamper-evident log.
package event

import "math/big"

// EventType discriminates envelope payloads.
type EventType string

const (
	TypeDepositMade       EventType = "deposit_made"
	TypeWithdrawalMade    EventType = "withdrawal_made"
	TypeLoanOpened        EventType = "loan_opened"
	TypeLoanIncreased     EventType = "loan_increased"
	TypeLoanRepaid        EventType = "loan_repaid"
	TypeLoanLiquidated    EventType = "loan_liquidated"
	TypeCollateralAdded   EventType = "collateral_added"
	TypeCollateralFreed   EventType = "collateral_freed"
	TypeLiquiditySupplied EventType = "liquidity_supplied"
)

// LiquiditySupplied records borrowable funds entering the protocol pool.
type LiquiditySupplied struct {
	Funder string   `json:"funder"`
	Asset  string   `json:"asset"`
	Amount *big.Int `json:"amount"`
}

// DepositMade records collateral entering a user's free balance.
type DepositMade struct {
	Owner  string   `json:"owner"`
	Asset  string   `json:"asset"`
	Amount *big.Int `json:"amount"`
}

// WithdrawalMade records free collateral leaving the ledger.
type WithdrawalMade struct {
	Owner  string   `json:"owner"`
	Asset  string   `json:"asset"`
	Amount *big.Int `json:"amount"`
}

// LoanOpened records a new ACTIVE loan.
type LoanOpened struct {
	LoanID          string   `json:"loan_id"`
	Owner           string   `json:"owner"`
	BorrowAsset     string   `json:"borrow_asset"`
	CollateralAsset string   `json:"collateral_asset"`
	Principal       *big.Int `json:"principal"`
	Collateral      *big.Int `json:"collateral"`
	StartTime       int64    `json:"start_time"`
}

// LoanIncreased records additional principal drawn on an ACTIVE loan.
type LoanIncreased struct {
	LoanID       string   `json:"loan_id"`
	Owner        string   `json:"owner"`
	BorrowAsset  string   `json:"borrow_asset"`
	Delta        *big.Int `json:"delta"`
	NewPrincipal *big.Int `json:"new_principal"`
}

// LoanRepaid records full repayment and closure.
type LoanRepaid struct {
	LoanID             string   `json:"loan_id"`
	Owner              string   `json:"owner"`
	BorrowAsset        string   `json:"borrow_asset"`
	Principal          *big.Int `json:"principal"`
	Interest           *big.Int `json:"interest"`
	TotalPaid          *big.Int `json:"total_paid"`
	CollateralReleased *big.Int `json:"collateral_released"`
}

// LoanLiquidated records a third-party liquidation and closure.
type LoanLiquidated struct {
	LoanID           string   `json:"loan_id"`
	Owner            string   `json:"owner"`
	Liquidator       string   `json:"liquidator"`
	BorrowAsset      string   `json:"borrow_asset"`
	CollateralAsset  string   `json:"collateral_asset"`
	TotalDebt        *big.Int `json:"total_debt"`
	DebtInCollateral *big.Int `json:"debt_in_collateral"`
	Bonus            *big.Int `json:"bonus"`
	Reward           *big.Int `json:"reward"`
	Surplus          *big.Int `json:"surplus"`
	HealthFactor     *big.Int `json:"health_factor"`
}

// CollateralAdded records free collateral pledged to an existing loan.
type CollateralAdded struct {
	LoanID        string   `json:"loan_id"`
	Owner         string   `json:"owner"`
	Asset         string   `json:"asset"`
	Amount        *big.Int `json:"amount"`
	NewCollateral *big.Int `json:"new_collateral"`
}

// CollateralFreed records pledged collateral returned to the free balance.
type CollateralFreed struct {
	LoanID        string   `json:"loan_id"`
	Owner         string   `json:"owner"`
	Asset         string   `json:"asset"`
	Amount        *big.Int `json:"amount"`
	NewCollateral *big.Int `json:"new_collateral"`
}
