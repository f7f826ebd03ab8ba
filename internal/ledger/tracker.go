package ledger

import (
	"fmt"
	"math/big"
)

// BalanceTracker accumulates signed balances per account from applied
// journal batches. Debits increase a balance, credits decrease it, so the
// per-asset sum across all accounts is zero whenever every batch was applied
// whole. It backs the solvency check and the balance projections.
type BalanceTracker struct {
	balances map[AccountKey]*big.Int
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{balances: make(map[AccountKey]*big.Int)}
}

// Apply validates the batch and folds its entries into the balances.
func (t *BalanceTracker) Apply(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	for _, j := range batch.Journals {
		t.add(j.DebitAccount, j.Amount)
		t.sub(j.CreditAccount, j.Amount)
	}
	return nil
}

func (t *BalanceTracker) add(key AccountKey, amount *big.Int) {
	bal, ok := t.balances[key]
	if !ok {
		bal = new(big.Int)
		t.balances[key] = bal
	}
	bal.Add(bal, amount)
}

func (t *BalanceTracker) sub(key AccountKey, amount *big.Int) {
	bal, ok := t.balances[key]
	if !ok {
		bal = new(big.Int)
		t.balances[key] = bal
	}
	bal.Sub(bal, amount)
}

// Balance returns the signed balance for one account.
func (t *BalanceTracker) Balance(key AccountKey) *big.Int {
	if bal, ok := t.balances[key]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// CheckZeroSum verifies the double-entry invariant: for every asset the
// signed balances sum to zero. A violation means a batch was applied
// partially, which should be impossible.
func (t *BalanceTracker) CheckZeroSum() error {
	sums := make(map[string]*big.Int)
	for key, bal := range t.balances {
		sum, ok := sums[key.Asset]
		if !ok {
			sum = new(big.Int)
			sums[key.Asset] = sum
		}
		sum.Add(sum, bal)
	}
	for asset, sum := range sums {
		if sum.Sign() != 0 {
			return fmt.Errorf("ledger: zero-sum violation for asset %s: net %s", asset, sum)
		}
	}
	return nil
}
