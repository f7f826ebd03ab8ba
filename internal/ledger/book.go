package ledger

import (
	"fmt"
	"math/big"
)

// InsufficientBalanceError reports a withdraw or lock that exceeds the
// available free balance.
type InsufficientBalanceError struct {
	Owner     string
	Asset     string
	Requested *big.Int
	Available *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("ledger: insufficient free balance for %s in %s: requested %s, available %s",
		e.Owner, e.Asset, e.Requested, e.Available)
}

type bookKey struct {
	Owner string
	Asset string
}

type bookEntry struct {
	Free   *big.Int
	Locked *big.Int
}

// CollateralBook tracks each owner's collateral per asset, split into a
// free portion (withdrawable) and a locked portion (pledged to active
// loans). All mutations validate before applying; a failed call leaves the
// book untouched. The book is not safe for concurrent use; the engine
// serializes access.
type CollateralBook struct {
	entries map[bookKey]*bookEntry
}

func NewCollateralBook() *CollateralBook {
	return &CollateralBook{entries: make(map[bookKey]*bookEntry)}
}

func (b *CollateralBook) entry(owner, asset string) *bookEntry {
	k := bookKey{Owner: owner, Asset: asset}
	e, ok := b.entries[k]
	if !ok {
		e = &bookEntry{Free: new(big.Int), Locked: new(big.Int)}
		b.entries[k] = e
	}
	return e
}

// Deposit credits the free balance.
func (b *CollateralBook) Deposit(owner, asset string, amount *big.Int) {
	e := b.entry(owner, asset)
	e.Free.Add(e.Free, amount)
}

// Withdraw debits the free balance, failing if it would go negative.
func (b *CollateralBook) Withdraw(owner, asset string, amount *big.Int) error {
	e := b.entry(owner, asset)
	if e.Free.Cmp(amount) < 0 {
		return &InsufficientBalanceError{
			Owner:     owner,
			Asset:     asset,
			Requested: new(big.Int).Set(amount),
			Available: new(big.Int).Set(e.Free),
		}
	}
	e.Free.Sub(e.Free, amount)
	return nil
}

// Lock moves amount from the free portion to the locked portion.
func (b *CollateralBook) Lock(owner, asset string, amount *big.Int) error {
	e := b.entry(owner, asset)
	if e.Free.Cmp(amount) < 0 {
		return &InsufficientBalanceError{
			Owner:     owner,
			Asset:     asset,
			Requested: new(big.Int).Set(amount),
			Available: new(big.Int).Set(e.Free),
		}
	}
	e.Free.Sub(e.Free, amount)
	e.Locked.Add(e.Locked, amount)
	return nil
}

// Unlock moves amount from the locked portion back to free. The caller is
// expected to unlock at most what it previously locked; unlocking more is a
// programming error and panics.
func (b *CollateralBook) Unlock(owner, asset string, amount *big.Int) {
	e := b.entry(owner, asset)
	if e.Locked.Cmp(amount) < 0 {
		panic(fmt.Sprintf("ledger: unlock %s exceeds locked %s for %s/%s", amount, e.Locked, owner, asset))
	}
	e.Locked.Sub(e.Locked, amount)
	e.Free.Add(e.Free, amount)
}

// Seize removes amount from the locked portion without returning it to the
// owner, used by liquidation. Panics on over-seize for the same reason as
// Unlock.
func (b *CollateralBook) Seize(owner, asset string, amount *big.Int) {
	e := b.entry(owner, asset)
	if e.Locked.Cmp(amount) < 0 {
		panic(fmt.Sprintf("ledger: seize %s exceeds locked %s for %s/%s", amount, e.Locked, owner, asset))
	}
	e.Locked.Sub(e.Locked, amount)
}

// Relock credits the locked portion directly, the inverse of Seize. Used
// only for in-lock rollback of a failed liquidation settlement.
func (b *CollateralBook) Relock(owner, asset string, amount *big.Int) {
	e := b.entry(owner, asset)
	e.Locked.Add(e.Locked, amount)
}

// FreeBalance returns the withdrawable balance for owner in asset.
func (b *CollateralBook) FreeBalance(owner, asset string) *big.Int {
	if e, ok := b.entries[bookKey{Owner: owner, Asset: asset}]; ok {
		return new(big.Int).Set(e.Free)
	}
	return new(big.Int)
}

// LockedBalance returns the pledged balance for owner in asset.
func (b *CollateralBook) LockedBalance(owner, asset string) *big.Int {
	if e, ok := b.entries[bookKey{Owner: owner, Asset: asset}]; ok {
		return new(big.Int).Set(e.Locked)
	}
	return new(big.Int)
}

// BalanceSnapshot is one owner/asset row of the book.
type BalanceSnapshot struct {
	Owner  string   `json:"owner"`
	Asset  string   `json:"asset"`
	Free   *big.Int `json:"free"`
	Locked *big.Int `json:"locked"`
}

// Snapshot returns a deep copy of every entry, for persistence and queries.
func (b *CollateralBook) Snapshot() []BalanceSnapshot {
	out := make([]BalanceSnapshot, 0, len(b.entries))
	for k, e := range b.entries {
		out = append(out, BalanceSnapshot{
			Owner:  k.Owner,
			Asset:  k.Asset,
			Free:   new(big.Int).Set(e.Free),
			Locked: new(big.Int).Set(e.Locked),
		})
	}
	return out
}

// Restore replaces the book contents with the given rows.
func (b *CollateralBook) Restore(rows []BalanceSnapshot) {
	b.entries = make(map[bookKey]*bookEntry, len(rows))
	for _, r := range rows {
		b.entries[bookKey{Owner: r.Owner, Asset: r.Asset}] = &bookEntry{
			Free:   new(big.Int).Set(r.Free),
			Locked: new(big.Int).Set(r.Locked),
		}
	}
}
