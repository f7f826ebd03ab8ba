// Package registry keeps every loan ever opened. Live records track the
// current lifecycle state; closed loans are zeroed in place while an archive
// copy retains the pre-closure amounts. Nothing is ever deleted.
package registry

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
)

var (
	// ErrActiveLoanExists is returned when opening a loan for a triple that
	// already has an ACTIVE one.
	ErrActiveLoanExists = errors.New("registry: active loan already exists for owner and asset pair")

	// ErrNoLoanFound is returned when no loan matches the lookup.
	ErrNoLoanFound = errors.New("registry: no loan found")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("registry: invalid status transition")
)

type triple struct {
	Owner           string
	BorrowAsset     string
	CollateralAsset string
}

// Registry indexes loans by id, by owner, and by the unique active triple.
// Not safe for concurrent use; the engine serializes access.
type Registry struct {
	counter uint64
	byID    map[string]*Loan
	byOwner map[string][]string // loan ids in open order
	active  map[triple]string   // at most one ACTIVE loan per triple
	archive map[string]*Loan    // pre-closure copies of closed loans
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]*Loan),
		byOwner: make(map[string][]string),
		active:  make(map[triple]string),
		archive: make(map[string]*Loan),
	}
}

// Open creates an ACTIVE loan for the triple. The id embeds a monotonic
// counter so reopening the same triple after closure yields a distinct id.
func (r *Registry) Open(owner, borrowAsset, collateralAsset string, principal, collateral *big.Int, startTime int64) (*Loan, error) {
	key := triple{Owner: owner, BorrowAsset: borrowAsset, CollateralAsset: collateralAsset}
	if _, exists := r.active[key]; exists {
		return nil, ErrActiveLoanExists
	}
	r.counter++
	loan := &Loan{
		ID:              fmt.Sprintf("%s:%s:%s:%d", owner, borrowAsset, collateralAsset, r.counter),
		Owner:           owner,
		BorrowAsset:     borrowAsset,
		CollateralAsset: collateralAsset,
		Principal:       new(big.Int).Set(principal),
		Collateral:      new(big.Int).Set(collateral),
		StartTime:       startTime,
		Status:          StatusActive,
	}
	r.byID[loan.ID] = loan
	r.byOwner[owner] = append(r.byOwner[owner], loan.ID)
	r.active[key] = loan.ID
	return loan, nil
}

// Active returns the ACTIVE loan for the triple, or ErrNoLoanFound.
func (r *Registry) Active(owner, borrowAsset, collateralAsset string) (*Loan, error) {
	key := triple{Owner: owner, BorrowAsset: borrowAsset, CollateralAsset: collateralAsset}
	id, ok := r.active[key]
	if !ok {
		return nil, ErrNoLoanFound
	}
	return r.byID[id], nil
}

// Get returns the live record by id (zeroed for closed loans).
func (r *Registry) Get(id string) (*Loan, error) {
	loan, ok := r.byID[id]
	if !ok {
		return nil, ErrNoLoanFound
	}
	return loan, nil
}

// History returns the pre-closure archive record by id, falling back to the
// live record for loans still open.
func (r *Registry) History(id string) (*Loan, error) {
	if archived, ok := r.archive[id]; ok {
		return archived, nil
	}
	loan, ok := r.byID[id]
	if !ok {
		return nil, ErrNoLoanFound
	}
	return loan, nil
}

// Close transitions the loan to a terminal status, archives a copy with the
// pre-closure amounts, and zeroes the live record.
func (r *Registry) Close(id string, target LoanStatus) error {
	loan, ok := r.byID[id]
	if !ok {
		return ErrNoLoanFound
	}
	if !loan.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, loan.Status, target)
	}
	if !target.IsTerminal() {
		return fmt.Errorf("%w: close requires a terminal status, got %s", ErrInvalidTransition, target)
	}
	archived := loan.Clone()
	archived.Status = target
	r.archive[id] = archived

	loan.Status = target
	loan.Principal = new(big.Int)
	loan.Collateral = new(big.Int)
	delete(r.active, triple{Owner: loan.Owner, BorrowAsset: loan.BorrowAsset, CollateralAsset: loan.CollateralAsset})
	return nil
}

// Reopen undoes a Close in place, restoring the archived amounts. Used only
// for in-lock rollback when a post-commit transfer fails.
func (r *Registry) Reopen(id string) error {
	archived, ok := r.archive[id]
	if !ok {
		return ErrNoLoanFound
	}
	loan := r.byID[id]
	loan.Status = StatusActive
	loan.Principal = new(big.Int).Set(archived.Principal)
	loan.Collateral = new(big.Int).Set(archived.Collateral)
	delete(r.archive, id)
	r.active[triple{Owner: loan.Owner, BorrowAsset: loan.BorrowAsset, CollateralAsset: loan.CollateralAsset}] = id
	return nil
}

// Remove deletes a just-opened loan. Used only for in-lock rollback of a
// failed disbursement; it must never be called on a loan that has been
// observable outside the engine lock.
func (r *Registry) Remove(id string) {
	loan, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.active, triple{Owner: loan.Owner, BorrowAsset: loan.BorrowAsset, CollateralAsset: loan.CollateralAsset})
	ids := r.byOwner[loan.Owner]
	for i, lid := range ids {
		if lid == id {
			r.byOwner[loan.Owner] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// ListByOwner returns the owner's loans in open order, optionally filtered
// by status. Closed loans are returned from the archive so amounts reflect
// the pre-closure values.
func (r *Registry) ListByOwner(owner string, filter ...LoanStatus) []*Loan {
	var out []*Loan
	for _, id := range r.byOwner[owner] {
		loan := r.byID[id]
		if archived, ok := r.archive[id]; ok {
			loan = archived
		}
		if len(filter) > 0 && !statusIn(loan.Status, filter) {
			continue
		}
		out = append(out, loan.Clone())
	}
	return out
}

func statusIn(s LoanStatus, set []LoanStatus) bool {
	for _, f := range set {
		if s == f {
			return true
		}
	}
	return false
}

// RegistrySnapshot captures the full registry state for persistence.
type RegistrySnapshot struct {
	Counter uint64  `json:"counter"`
	Loans   []*Loan `json:"loans"`
	Archive []*Loan `json:"archive"`
}

// Snapshot returns a deep copy of the registry state with loans in id order.
func (r *Registry) Snapshot() RegistrySnapshot {
	snap := RegistrySnapshot{Counter: r.counter}
	for _, loan := range r.byID {
		snap.Loans = append(snap.Loans, loan.Clone())
	}
	for _, loan := range r.archive {
		snap.Archive = append(snap.Archive, loan.Clone())
	}
	sort.Slice(snap.Loans, func(i, j int) bool { return snap.Loans[i].ID < snap.Loans[j].ID })
	sort.Slice(snap.Archive, func(i, j int) bool { return snap.Archive[i].ID < snap.Archive[j].ID })
	return snap
}

// Restore replaces the registry state from a snapshot, rebuilding indices.
func (r *Registry) Restore(snap RegistrySnapshot) {
	r.counter = snap.Counter
	r.byID = make(map[string]*Loan, len(snap.Loans))
	r.byOwner = make(map[string][]string)
	r.active = make(map[triple]string)
	r.archive = make(map[string]*Loan, len(snap.Archive))
	for _, loan := range snap.Loans {
		cp := loan.Clone()
		r.byID[cp.ID] = cp
		r.byOwner[cp.Owner] = append(r.byOwner[cp.Owner], cp.ID)
		if cp.Status == StatusActive {
			r.active[triple{Owner: cp.Owner, BorrowAsset: cp.BorrowAsset, CollateralAsset: cp.CollateralAsset}] = cp.ID
		}
	}
	for _, loan := range snap.Archive {
		r.archive[loan.ID] = loan.Clone()
	}
}
