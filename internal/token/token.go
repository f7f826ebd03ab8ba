// Package token defines the fungible-asset transfer capability the ledger
// uses for custody movements. The interface is deliberately narrow: it has
// no path back into the lending engine, so an implementation cannot
// re-enter a half-committed operation.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// Token is the standard fungible-asset surface. Every transfer returns an
// accepted flag that the caller must check; a false result fails the
// enclosing operation distinctly from balance or collateral errors.
type Token interface {
	// TransferFrom moves amount from one account to another.
	TransferFrom(from, to string, amount *big.Int) (bool, error)
	// Transfer moves amount from protocol custody to an account.
	Transfer(to string, amount *big.Int) (bool, error)
	// BalanceOf returns the balance held by account.
	BalanceOf(account string) (*big.Int, error)
}

// TransferFailedError reports a transfer that the token rejected or that
// errored at the token boundary.
type TransferFailedError struct {
	Asset string
	From  string
	To    string
	Err   error
}

func (e *TransferFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: transfer of %s from %s to %s failed: %v", e.Asset, e.From, e.To, e.Err)
	}
	return fmt.Sprintf("token: transfer of %s from %s to %s rejected", e.Asset, e.From, e.To)
}

func (e *TransferFailedError) Unwrap() error { return e.Err }

var errInsufficientTokenBalance = errors.New("token: insufficient balance")

// MemToken is an in-memory token used by tests and local development.
// The custody account named at construction is the implicit sender for
// Transfer calls, matching protocol-held custody semantics.
type MemToken struct {
	mu       sync.Mutex
	symbol   string
	custody  string
	balances map[string]*big.Int
}

func NewMemToken(symbol, custody string) *MemToken {
	return &MemToken{
		symbol:   symbol,
		custody:  custody,
		balances: make(map[string]*big.Int),
	}
}

// Mint credits an account out of thin air. Test setup only.
func (t *MemToken) Mint(account string, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(account, amount)
}

func (t *MemToken) TransferFrom(from, to string, amount *big.Int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, amount); err != nil {
		return false, nil // rejected, not errored: mirrors a false return
	}
	t.credit(to, amount)
	return true, nil
}

func (t *MemToken) Transfer(to string, amount *big.Int) (bool, error) {
	return t.TransferFrom(t.custody, to, amount)
}

func (t *MemToken) BalanceOf(account string) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (t *MemToken) debit(account string, amount *big.Int) error {
	bal, ok := t.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return errInsufficientTokenBalance
	}
	bal.Sub(bal, amount)
	return nil
}

func (t *MemToken) credit(account string, amount *big.Int) {
	bal, ok := t.balances[account]
	if !ok {
		bal = new(big.Int)
		t.balances[account] = bal
	}
	bal.Add(bal, amount)
}
