package registry

import "math/big"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus int32

const (
	StatusInactive LoanStatus = iota
	StatusActive
	StatusRepaid
	StatusLiquidated
)

func (s LoanStatus) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusRepaid:
		return "REPAID"
	case StatusLiquidated:
		return "LIQUIDATED"
	default:
		return "UNKNOWN"
	}
}

// CanTransitionTo reports whether the status machine allows moving from s
// to target. REPAID and LIQUIDATED are terminal.
func (s LoanStatus) CanTransitionTo(target LoanStatus) bool {
	switch s {
	case StatusInactive:
		return target == StatusActive
	case StatusActive:
		return target == StatusRepaid || target == StatusLiquidated
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s LoanStatus) IsTerminal() bool {
	return s == StatusRepaid || s == StatusLiquidated
}

// Loan is a single borrow position. Principal and Collateral are 18-decimal
// fixed-point amounts of the respective assets. StartTime is epoch seconds;
// interest accrues from it.
type Loan struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	BorrowAsset     string     `json:"borrow_asset"`
	CollateralAsset string     `json:"collateral_asset"`
	Principal       *big.Int   `json:"principal"`
	Collateral      *big.Int   `json:"collateral"`
	StartTime       int64      `json:"start_time"`
	Status          LoanStatus `json:"status"`
}

// Clone returns a deep copy.
func (l *Loan) Clone() *Loan {
	cp := *l
	cp.Principal = new(big.Int).Set(l.Principal)
	cp.Collateral = new(big.Int).Set(l.Collateral)
	return &cp
}
