package ledger_test

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"LendLedger/internal/ledger"
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	key := ledger.NewUserAccountKey("alice", ledger.SubTypeDeposited, "ETH")
	if path := key.AccountPath(); path != "user:alice:deposited:ETH" {
		t.Errorf("got %q, want %q", path, "user:alice:deposited:ETH")
	}
}

func TestAccountKey_SystemPath(t *testing.T) {
	key := ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, "USDC")
	if path := key.AccountPath(); path != "system:liquidity:USDC" {
		t.Errorf("got %q, want %q", path, "system:liquidity:USDC")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, "USDC")
	if path := key.AccountPath(); path != "external:inflow:USDC" {
		t.Errorf("got %q, want %q", path, "external:inflow:USDC")
	}
}

// ============================================================================
// Test: CollateralBook
// ============================================================================

func TestBook_DepositAndWithdraw(t *testing.T) {
	book := ledger.NewCollateralBook()
	book.Deposit("alice", "ETH", big.NewInt(100))

	if err := book.Withdraw("alice", "ETH", big.NewInt(40)); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if free := book.FreeBalance("alice", "ETH"); free.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("free: got %s, want 60", free)
	}
}

func TestBook_WithdrawMoreThanFree(t *testing.T) {
	book := ledger.NewCollateralBook()
	book.Deposit("alice", "ETH", big.NewInt(100))
	if err := book.Lock("alice", "ETH", big.NewInt(70)); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	err := book.Withdraw("alice", "ETH", big.NewInt(50))
	insufficient, ok := err.(*ledger.InsufficientBalanceError)
	if !ok {
		t.Fatalf("got %v, want InsufficientBalanceError", err)
	}
	if insufficient.Available.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("available: got %s, want 30", insufficient.Available)
	}
	// Failed withdraw leaves the book untouched.
	if free := book.FreeBalance("alice", "ETH"); free.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("free after failed withdraw: got %s, want 30", free)
	}
}

func TestBook_LockUnlockRoundTrip(t *testing.T) {
	book := ledger.NewCollateralBook()
	book.Deposit("alice", "ETH", big.NewInt(100))

	if err := book.Lock("alice", "ETH", big.NewInt(100)); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if free := book.FreeBalance("alice", "ETH"); free.Sign() != 0 {
		t.Errorf("free after lock: got %s, want 0", free)
	}
	if locked := book.LockedBalance("alice", "ETH"); locked.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("locked: got %s, want 100", locked)
	}

	book.Unlock("alice", "ETH", big.NewInt(100))
	if free := book.FreeBalance("alice", "ETH"); free.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("free after unlock: got %s, want 100", free)
	}
}

func TestBook_LockMoreThanFree(t *testing.T) {
	book := ledger.NewCollateralBook()
	book.Deposit("alice", "ETH", big.NewInt(10))
	if err := book.Lock("alice", "ETH", big.NewInt(11)); err == nil {
		t.Error("lock above free balance should fail")
	}
}

func TestBook_SeizeRemovesLockedOnly(t *testing.T) {
	book := ledger.NewCollateralBook()
	book.Deposit("alice", "ETH", big.NewInt(100))
	if err := book.Lock("alice", "ETH", big.NewInt(60)); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	book.Seize("alice", "ETH", big.NewInt(60))
	if locked := book.LockedBalance("alice", "ETH"); locked.Sign() != 0 {
		t.Errorf("locked after seize: got %s, want 0", locked)
	}
	// The free portion is unaffected by liquidation.
	if free := book.FreeBalance("alice", "ETH"); free.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("free after seize: got %s, want 40", free)
	}
}

func TestBook_OverUnlockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("unlock above locked balance should panic")
		}
	}()
	book := ledger.NewCollateralBook()
	book.Unlock("alice", "ETH", big.NewInt(1))
}

func TestBook_SnapshotRestore(t *testing.T) {
	book := ledger.NewCollateralBook()
	book.Deposit("alice", "ETH", big.NewInt(100))
	if err := book.Lock("alice", "ETH", big.NewInt(25)); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	book.Deposit("bob", "USDC", big.NewInt(7))

	restored := ledger.NewCollateralBook()
	restored.Restore(book.Snapshot())

	if free := restored.FreeBalance("alice", "ETH"); free.Cmp(big.NewInt(75)) != 0 {
		t.Errorf("alice free: got %s, want 75", free)
	}
	if locked := restored.LockedBalance("alice", "ETH"); locked.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("alice locked: got %s, want 25", locked)
	}
	if free := restored.FreeBalance("bob", "USDC"); free.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("bob free: got %s, want 7", free)
	}
}

// ============================================================================
// Test: Batch
// ============================================================================

func testBatch() *ledger.Batch {
	b := ledger.NewBatch("loan-1", 1, 1_000_000)
	b.Append(ledger.JournalTypeDeposit,
		ledger.NewUserAccountKey("alice", ledger.SubTypeDeposited, "ETH"),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, "ETH"),
		"ETH", big.NewInt(100))
	return b
}

func TestBatch_ValidateOK(t *testing.T) {
	if err := testBatch().Validate(); err != nil {
		t.Errorf("valid batch rejected: %v", err)
	}
}

func TestBatch_ValidateEmpty(t *testing.T) {
	b := ledger.NewBatch("loan-1", 1, 1_000_000)
	if err := b.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatch_ValidateNonPositiveAmount(t *testing.T) {
	b := testBatch()
	b.Journals[0].Amount = big.NewInt(0)
	if err := b.Validate(); err == nil {
		t.Error("zero amount should fail validation")
	}
}

func TestBatch_ValidateMismatchedBatchID(t *testing.T) {
	b := testBatch()
	b.Journals[0].BatchID = uuid.New()
	if err := b.Validate(); err == nil {
		t.Error("mismatched batch id should fail validation")
	}
}

func TestBatch_ValidateSelfTransfer(t *testing.T) {
	b := testBatch()
	b.Journals[0].CreditAccount = b.Journals[0].DebitAccount
	if err := b.Validate(); err == nil {
		t.Error("same debit and credit account should fail validation")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestTracker_ApplyAndBalance(t *testing.T) {
	tracker := ledger.NewBalanceTracker()
	if err := tracker.Apply(testBatch()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	debit := tracker.Balance(ledger.NewUserAccountKey("alice", ledger.SubTypeDeposited, "ETH"))
	if debit.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("debit balance: got %s, want 100", debit)
	}
	credit := tracker.Balance(ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, "ETH"))
	if credit.Cmp(big.NewInt(-100)) != 0 {
		t.Errorf("credit balance: got %s, want -100", credit)
	}
}

func TestTracker_RejectsInvalidBatch(t *testing.T) {
	tracker := ledger.NewBalanceTracker()
	b := testBatch()
	b.Journals[0].Amount = big.NewInt(-5)
	if err := tracker.Apply(b); err == nil {
		t.Error("invalid batch should be rejected before applying")
	}
	if err := tracker.CheckZeroSum(); err != nil {
		t.Errorf("rejected batch must leave balances untouched: %v", err)
	}
}

func TestTracker_ZeroSumHoldsAcrossBatches(t *testing.T) {
	tracker := ledger.NewBalanceTracker()
	for i := int64(1); i <= 5; i++ {
		b := ledger.NewBatch("op", i, i*1000)
		b.Append(ledger.JournalTypeCollateralLock,
			ledger.NewUserAccountKey("alice", ledger.SubTypeLocked, "ETH"),
			ledger.NewUserAccountKey("alice", ledger.SubTypeDeposited, "ETH"),
			"ETH", big.NewInt(i*10))
		b.Append(ledger.JournalTypeLoanDisbursement,
			ledger.NewExternalAccountKey(ledger.SubTypeExternalOut, "USDC"),
			ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, "USDC"),
			"USDC", big.NewInt(i*7))
		if err := tracker.Apply(b); err != nil {
			t.Fatalf("Apply batch %d: %v", i, err)
		}
	}
	if err := tracker.CheckZeroSum(); err != nil {
		t.Errorf("zero sum violated: %v", err)
	}
}
