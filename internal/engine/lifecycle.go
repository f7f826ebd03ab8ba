package engine

import (
	"fmt"
	"math/big"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	"LendLedger/internal/registry"
	"LendLedger/internal/risk"
)

// Deposit credits the owner's free collateral balance and pulls the tokens
// into custody.
func (e *Engine) Deposit(owner, asset string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		return err
	}
	if err := e.checkAsset(asset); err != nil {
		return err
	}

	e.book.Deposit(owner, asset, amount)
	if err := e.transferIn(asset, owner, amount); err != nil {
		if werr := e.book.Withdraw(owner, asset, amount); werr != nil {
			panic(fmt.Sprintf("engine: deposit rollback failed: %v", werr))
		}
		return err
	}

	batch := e.newBatch(fmt.Sprintf("deposit:%s:%s", owner, asset))
	batch.Append(ledger.JournalTypeDeposit,
		ledger.NewUserAccountKey(owner, ledger.SubTypeDeposited, asset),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, asset),
		asset, amount)
	return e.commit(event.TypeDepositMade, &event.DepositMade{Owner: owner, Asset: asset, Amount: amount}, batch)
}

// Withdraw debits the owner's free collateral balance and pushes the tokens
// out of custody. Collateral locked by active loans is not withdrawable.
func (e *Engine) Withdraw(owner, asset string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		return err
	}
	if err := e.checkAsset(asset); err != nil {
		return err
	}

	if err := e.book.Withdraw(owner, asset, amount); err != nil {
		return err
	}
	if err := e.transferOut(asset, owner, amount); err != nil {
		e.book.Deposit(owner, asset, amount)
		return err
	}

	batch := e.newBatch(fmt.Sprintf("withdraw:%s:%s", owner, asset))
	batch.Append(ledger.JournalTypeWithdrawal,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalOut, asset),
		ledger.NewUserAccountKey(owner, ledger.SubTypeDeposited, asset),
		asset, amount)
	return e.commit(event.TypeWithdrawalMade, &event.WithdrawalMade{Owner: owner, Asset: asset, Amount: amount}, batch)
}

// Borrow opens an ACTIVE loan: locks the supplied collateral, records the
// principal, and disburses the borrow amount from protocol liquidity.
func (e *Engine) Borrow(owner, borrowAsset string, amount *big.Int, collateralAsset string, collateralAmount *big.Int) (*registry.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkAsset(borrowAsset); err != nil {
		return nil, err
	}
	if err := e.checkAsset(collateralAsset); err != nil {
		return nil, err
	}
	if borrowAsset == collateralAsset {
		return nil, ErrSameAsset
	}
	if _, err := e.registry.Active(owner, borrowAsset, collateralAsset); err == nil {
		return nil, registry.ErrActiveLoanExists
	}

	pool := e.liquidityOf(borrowAsset)
	if pool.Cmp(amount) < 0 {
		return nil, &InsufficientLiquidityError{
			Asset:     borrowAsset,
			Available: new(big.Int).Set(pool),
			Requested: new(big.Int).Set(amount),
		}
	}

	required, err := e.requiredCollateral(borrowAsset, amount, collateralAsset)
	if err != nil {
		return nil, err
	}
	if collateralAmount == nil || collateralAmount.Cmp(required) < 0 {
		supplied := new(big.Int)
		if collateralAmount != nil {
			supplied.Set(collateralAmount)
		}
		return nil, &CollateralBelowMinimumError{Required: required, Supplied: supplied}
	}

	free := e.book.FreeBalance(owner, collateralAsset)
	if free.Cmp(collateralAmount) < 0 {
		return nil, &InsufficientFreeCollateralError{Free: free, Requested: new(big.Int).Set(collateralAmount)}
	}

	if err := e.book.Lock(owner, collateralAsset, collateralAmount); err != nil {
		return nil, err
	}
	now := e.now().Unix()
	loan, err := e.registry.Open(owner, borrowAsset, collateralAsset, amount, collateralAmount, now)
	if err != nil {
		e.book.Unlock(owner, collateralAsset, collateralAmount)
		return nil, err
	}

	// Rounding guard: a position opened at exactly the collateral minimum
	// must still price at or above 1.0.
	hf, err := e.calc.LoanHealth(loan, now)
	if err != nil || !risk.IsHealthy(hf) {
		e.registry.Remove(loan.ID)
		e.book.Unlock(owner, collateralAsset, collateralAmount)
		if err != nil {
			return nil, err
		}
		return nil, ErrBreaksHealthFactor
	}

	pool.Sub(pool, amount)
	if err := e.transferOut(borrowAsset, owner, amount); err != nil {
		pool.Add(pool, amount)
		e.registry.Remove(loan.ID)
		e.book.Unlock(owner, collateralAsset, collateralAmount)
		return nil, err
	}

	batch := e.newBatch(loan.ID)
	batch.Append(ledger.JournalTypeCollateralLock,
		ledger.NewUserAccountKey(owner, ledger.SubTypeLocked, collateralAsset),
		ledger.NewUserAccountKey(owner, ledger.SubTypeDeposited, collateralAsset),
		collateralAsset, collateralAmount)
	batch.Append(ledger.JournalTypeLoanDisbursement,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalOut, borrowAsset),
		ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, borrowAsset),
		borrowAsset, amount)
	payload := &event.LoanOpened{
		LoanID:          loan.ID,
		Owner:           owner,
		BorrowAsset:     borrowAsset,
		CollateralAsset: collateralAsset,
		Principal:       amount,
		Collateral:      collateralAmount,
		StartTime:       now,
	}
	if err := e.commit(event.TypeLoanOpened, payload, batch); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// IncreaseBorrow draws additional principal on an ACTIVE loan against the
// collateral already locked.
func (e *Engine) IncreaseBorrow(owner, borrowAsset, collateralAsset string, delta *big.Int) (*registry.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(delta); err != nil {
		return nil, err
	}
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, err
	}

	pool := e.liquidityOf(borrowAsset)
	if pool.Cmp(delta) < 0 {
		return nil, &InsufficientLiquidityError{
			Asset:     borrowAsset,
			Available: new(big.Int).Set(pool),
			Requested: new(big.Int).Set(delta),
		}
	}

	newPrincipal := new(big.Int).Add(loan.Principal, delta)
	required, err := e.requiredCollateral(borrowAsset, newPrincipal, collateralAsset)
	if err != nil {
		return nil, err
	}
	if loan.Collateral.Cmp(required) < 0 {
		return nil, &CollateralBelowMinimumError{Required: required, Supplied: new(big.Int).Set(loan.Collateral)}
	}

	prevPrincipal := new(big.Int).Set(loan.Principal)
	loan.Principal.Set(newPrincipal)
	pool.Sub(pool, delta)
	if err := e.transferOut(borrowAsset, owner, delta); err != nil {
		pool.Add(pool, delta)
		loan.Principal.Set(prevPrincipal)
		return nil, err
	}

	batch := e.newBatch(loan.ID)
	batch.Append(ledger.JournalTypeLoanDisbursement,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalOut, borrowAsset),
		ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, borrowAsset),
		borrowAsset, delta)
	payload := &event.LoanIncreased{
		LoanID:       loan.ID,
		Owner:        owner,
		BorrowAsset:  borrowAsset,
		Delta:        delta,
		NewPrincipal: newPrincipal,
	}
	if err := e.commit(event.TypeLoanIncreased, payload, batch); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// Repay settles an ACTIVE loan in full: principal plus accrued interest.
// Partial repayment is rejected. On success the loan closes REPAID and the
// locked collateral returns to the owner's free balance.
func (e *Engine) Repay(owner, borrowAsset, collateralAsset string, supplied *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(supplied); err != nil {
		return err
	}
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return err
	}

	now := e.now().Unix()
	interest := e.params.AccruedInterest(loan.Principal, now-loan.StartTime)
	due := new(big.Int).Add(loan.Principal, interest)
	if supplied.Cmp(due) < 0 {
		return &InsufficientRepaymentError{Supplied: new(big.Int).Set(supplied), Due: due}
	}

	balance, err := e.tokens[borrowAsset].BalanceOf(owner)
	if err != nil {
		return fmt.Errorf("engine: read balance for %s: %w", owner, err)
	}
	if balance.Cmp(due) < 0 {
		return &InsufficientCallerBalanceError{Balance: balance, Due: due}
	}

	principal := new(big.Int).Set(loan.Principal)
	collateral := new(big.Int).Set(loan.Collateral)
	loanID := loan.ID
	if err := e.registry.Close(loanID, registry.StatusRepaid); err != nil {
		return err
	}
	e.book.Unlock(owner, collateralAsset, collateral)

	pool := e.liquidityOf(borrowAsset)
	pool.Add(pool, principal)
	if err := e.transferIn(borrowAsset, owner, due); err != nil {
		pool.Sub(pool, principal)
		if rerr := e.book.Withdraw(owner, collateralAsset, collateral); rerr != nil {
			panic(fmt.Sprintf("engine: repay rollback failed: %v", rerr))
		}
		e.book.Relock(owner, collateralAsset, collateral)
		if rerr := e.registry.Reopen(loanID); rerr != nil {
			panic(fmt.Sprintf("engine: repay rollback failed: %v", rerr))
		}
		return err
	}

	batch := e.newBatch(loanID)
	batch.Append(ledger.JournalTypeLoanRepayment,
		ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, borrowAsset),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, borrowAsset),
		borrowAsset, principal)
	if interest.Sign() > 0 {
		batch.Append(ledger.JournalTypeInterestPayment,
			ledger.NewSystemAccountKey(ledger.SubTypeSystemInterest, borrowAsset),
			ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, borrowAsset),
			borrowAsset, interest)
	}
	batch.Append(ledger.JournalTypeCollateralRelease,
		ledger.NewUserAccountKey(owner, ledger.SubTypeDeposited, collateralAsset),
		ledger.NewUserAccountKey(owner, ledger.SubTypeLocked, collateralAsset),
		collateralAsset, collateral)
	payload := &event.LoanRepaid{
		LoanID:             loanID,
		Owner:              owner,
		BorrowAsset:        borrowAsset,
		Principal:          principal,
		Interest:           interest,
		TotalPaid:          due,
		CollateralReleased: collateral,
	}
	return e.commit(event.TypeLoanRepaid, payload, batch)
}

// Liquidate settles an undercollateralized ACTIVE loan. Anyone may call it:
// the liquidator pays the full debt in the borrow asset and receives the
// debt equivalent plus a bonus in the collateral asset. Locked collateral
// beyond the reward is retained by the protocol; the owner's claim on it
// ends with the loan.
func (e *Engine) Liquidate(liquidator, owner, borrowAsset, collateralAsset string) (*risk.LiquidationQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, err
	}

	now := e.now().Unix()
	hf, err := e.calc.LoanHealth(loan, now)
	if err != nil {
		return nil, err
	}
	if risk.IsHealthy(hf) {
		return nil, &HealthFactorAboveMinimumError{HealthFactor: hf}
	}

	quote, err := e.calc.Quote(loan, now)
	if err != nil {
		return nil, err
	}
	if loan.Collateral.Cmp(quote.TotalReward) < 0 {
		return nil, &InsufficientCollateralError{
			Available: new(big.Int).Set(loan.Collateral),
			Required:  new(big.Int).Set(quote.TotalReward),
		}
	}
	balance, err := e.tokens[borrowAsset].BalanceOf(liquidator)
	if err != nil {
		return nil, fmt.Errorf("engine: read balance for %s: %w", liquidator, err)
	}
	if balance.Cmp(quote.TotalDebt) < 0 {
		return nil, &InsufficientLiquidatorBalanceError{Balance: balance, Debt: new(big.Int).Set(quote.TotalDebt)}
	}

	collateral := new(big.Int).Set(loan.Collateral)
	surplus := new(big.Int).Sub(collateral, quote.TotalReward)
	loanID := loan.ID
	if err := e.registry.Close(loanID, registry.StatusLiquidated); err != nil {
		return nil, err
	}
	e.book.Seize(owner, collateralAsset, collateral)
	pool := e.liquidityOf(borrowAsset)
	pool.Add(pool, quote.TotalDebt)

	rollback := func() {
		pool.Sub(pool, quote.TotalDebt)
		e.book.Relock(owner, collateralAsset, collateral)
		if rerr := e.registry.Reopen(loanID); rerr != nil {
			panic(fmt.Sprintf("engine: liquidate rollback failed: %v", rerr))
		}
	}
	if err := e.transferIn(borrowAsset, liquidator, quote.TotalDebt); err != nil {
		rollback()
		return nil, err
	}
	if err := e.transferOut(collateralAsset, liquidator, quote.TotalReward); err != nil {
		if refundErr := e.transferOut(borrowAsset, liquidator, quote.TotalDebt); refundErr != nil {
			e.logger.Error().Err(refundErr).Str("loan_id", loanID).Msg("liquidation refund failed")
		}
		rollback()
		return nil, err
	}

	batch := e.newBatch(loanID)
	batch.Append(ledger.JournalTypeLiquidationDebt,
		ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, borrowAsset),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, borrowAsset),
		borrowAsset, quote.TotalDebt)
	batch.Append(ledger.JournalTypeLiquidationReward,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalOut, collateralAsset),
		ledger.NewUserAccountKey(owner, ledger.SubTypeLocked, collateralAsset),
		collateralAsset, quote.TotalReward)
	if surplus.Sign() > 0 {
		batch.Append(ledger.JournalTypeLiquidationSurplus,
			ledger.NewSystemAccountKey(ledger.SubTypeSystemSurplus, collateralAsset),
			ledger.NewUserAccountKey(owner, ledger.SubTypeLocked, collateralAsset),
			collateralAsset, surplus)
	}
	payload := &event.LoanLiquidated{
		LoanID:           loanID,
		Owner:            owner,
		Liquidator:       liquidator,
		BorrowAsset:      borrowAsset,
		CollateralAsset:  collateralAsset,
		TotalDebt:        quote.TotalDebt,
		DebtInCollateral: quote.DebtInCollateral,
		Bonus:            quote.Bonus,
		Reward:           quote.TotalReward,
		Surplus:          surplus,
		HealthFactor:     hf,
	}
	if err := e.commit(event.TypeLoanLiquidated, payload, batch); err != nil {
		return nil, err
	}
	return quote, nil
}

// AddCollateralToLoan moves free collateral into an ACTIVE loan's lock.
func (e *Engine) AddCollateralToLoan(owner, borrowAsset, collateralAsset string, amount *big.Int) (*registry.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, err
	}

	free := e.book.FreeBalance(owner, collateralAsset)
	if free.Cmp(amount) < 0 {
		return nil, &InsufficientFreeCollateralError{Free: free, Requested: new(big.Int).Set(amount)}
	}
	if err := e.book.Lock(owner, collateralAsset, amount); err != nil {
		return nil, err
	}
	loan.Collateral.Add(loan.Collateral, amount)

	batch := e.newBatch(loan.ID)
	batch.Append(ledger.JournalTypeCollateralLock,
		ledger.NewUserAccountKey(owner, ledger.SubTypeLocked, collateralAsset),
		ledger.NewUserAccountKey(owner, ledger.SubTypeDeposited, collateralAsset),
		collateralAsset, amount)
	payload := &event.CollateralAdded{
		LoanID:        loan.ID,
		Owner:         owner,
		Asset:         collateralAsset,
		Amount:        amount,
		NewCollateral: new(big.Int).Set(loan.Collateral),
	}
	if err := e.commit(event.TypeCollateralAdded, payload, batch); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// FreeCollateralFromLoan releases part of an ACTIVE loan's lock back to the
// owner's free balance, bounded below by the collateral minimum for the
// current debt.
func (e *Engine) FreeCollateralFromLoan(owner, borrowAsset, collateralAsset string, amount *big.Int) (*registry.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		return nil, err
	}
	loan, err := e.registry.Active(owner, borrowAsset, collateralAsset)
	if err != nil {
		return nil, err
	}
	if loan.Collateral.Cmp(amount) < 0 {
		return nil, &InsufficientCollateralError{
			Available: new(big.Int).Set(loan.Collateral),
			Required:  new(big.Int).Set(amount),
		}
	}

	now := e.now().Unix()
	debt := e.params.TotalDebt(loan.Principal, now-loan.StartTime)
	required, err := e.requiredCollateral(borrowAsset, debt, collateralAsset)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(loan.Collateral, amount)
	if remaining.Cmp(required) < 0 {
		return nil, &CollateralBelowMinimumError{Required: required, Supplied: remaining}
	}

	e.book.Unlock(owner, collateralAsset, amount)
	loan.Collateral.Set(remaining)

	batch := e.newBatch(loan.ID)
	batch.Append(ledger.JournalTypeCollateralRelease,
		ledger.NewUserAccountKey(owner, ledger.SubTypeDeposited, collateralAsset),
		ledger.NewUserAccountKey(owner, ledger.SubTypeLocked, collateralAsset),
		collateralAsset, amount)
	payload := &event.CollateralFreed{
		LoanID:        loan.ID,
		Owner:         owner,
		Asset:         collateralAsset,
		Amount:        amount,
		NewCollateral: new(big.Int).Set(loan.Collateral),
	}
	if err := e.commit(event.TypeCollateralFreed, payload, batch); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// requiredCollateral prices the minimum collateral amount backing debt at
// the liquidation threshold.
func (e *Engine) requiredCollateral(borrowAsset string, debt *big.Int, collateralAsset string) (*big.Int, error) {
	debtUSD, err := e.oracle.ValueInUSD(borrowAsset, debt)
	if err != nil {
		return nil, err
	}
	minUSD := e.params.MinCollateralUSD(debtUSD)
	return e.oracle.AmountFromUSD(collateralAsset, minUSD)
}
