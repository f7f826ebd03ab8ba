package risk

import (
	"math/big"

	fpmath "LendLedger/internal/math"
	"LendLedger/internal/registry"
)

// Converter turns asset amounts into USD values and back. Satisfied by the
// oracle adapter.
type Converter interface {
	ValueInUSD(asset string, amount *big.Int) (*big.Int, error)
	AmountFromUSD(asset string, usdValue *big.Int) (*big.Int, error)
}

// LiquidationQuote is the settlement math for liquidating one loan. All
// fields are 18-decimal amounts. Quotes are transient: they are computed,
// acted on, and discarded within one engine operation.
type LiquidationQuote struct {
	// TotalDebt is principal plus accrued interest, in borrow-asset units.
	TotalDebt *big.Int `json:"total_debt"`
	// DebtInCollateral is TotalDebt converted to collateral-asset units.
	DebtInCollateral *big.Int `json:"debt_in_collateral"`
	// Bonus is the liquidator premium, in collateral-asset units.
	Bonus *big.Int `json:"bonus"`
	// TotalReward is DebtInCollateral plus Bonus.
	TotalReward *big.Int `json:"total_reward"`
}

// Calculator produces liquidation quotes and position health from live
// prices.
type Calculator struct {
	params    Params
	converter Converter
}

func NewCalculator(params Params, converter Converter) *Calculator {
	return &Calculator{params: params, converter: converter}
}

func (c *Calculator) Params() Params { return c.params }

// Quote computes the liquidation settlement for loan at the given time.
// The bonus is taken on the debt equivalent, not on the seized collateral,
// so the reward is fully determined by the debt and the prices.
func (c *Calculator) Quote(loan *registry.Loan, now int64) (*LiquidationQuote, error) {
	totalDebt := c.params.TotalDebt(loan.Principal, now-loan.StartTime)
	debtUSD, err := c.converter.ValueInUSD(loan.BorrowAsset, totalDebt)
	if err != nil {
		return nil, err
	}
	debtInCollateral, err := c.converter.AmountFromUSD(loan.CollateralAsset, debtUSD)
	if err != nil {
		return nil, err
	}
	bonus := fpmath.MulDiv(debtInCollateral, big.NewInt(c.params.LiquidationBonusPct), big.NewInt(100))
	return &LiquidationQuote{
		TotalDebt:        totalDebt,
		DebtInCollateral: debtInCollateral,
		Bonus:            bonus,
		TotalReward:      new(big.Int).Add(debtInCollateral, bonus),
	}, nil
}

// LoanHealth computes the health factor of loan at the given time from live
// prices. Returns MaxHealthFactor for debt-free positions.
func (c *Calculator) LoanHealth(loan *registry.Loan, now int64) (*big.Int, error) {
	totalDebt := c.params.TotalDebt(loan.Principal, now-loan.StartTime)
	if totalDebt.Sign() <= 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}
	debtUSD, err := c.converter.ValueInUSD(loan.BorrowAsset, totalDebt)
	if err != nil {
		return nil, err
	}
	collateralUSD, err := c.converter.ValueInUSD(loan.CollateralAsset, loan.Collateral)
	if err != nil {
		return nil, err
	}
	return c.params.HealthFactor(collateralUSD, debtUSD), nil
}
