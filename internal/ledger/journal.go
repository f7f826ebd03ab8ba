package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// JournalType classifies a journal entry by the operation that produced it.
type JournalType int32

const (
	JournalTypeDeposit JournalType = iota
	JournalTypeWithdrawal
	JournalTypeCollateralLock
	JournalTypeCollateralRelease
	JournalTypeLoanDisbursement
	JournalTypeLoanRepayment
	JournalTypeInterestPayment
	JournalTypeLiquidationDebt
	JournalTypeLiquidationReward
	JournalTypeLiquidationSurplus
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeDeposit:
		return "deposit"
	case JournalTypeWithdrawal:
		return "withdrawal"
	case JournalTypeCollateralLock:
		return "collateral_lock"
	case JournalTypeCollateralRelease:
		return "collateral_release"
	case JournalTypeLoanDisbursement:
		return "loan_disbursement"
	case JournalTypeLoanRepayment:
		return "loan_repayment"
	case JournalTypeInterestPayment:
		return "interest_payment"
	case JournalTypeLiquidationDebt:
		return "liquidation_debt"
	case JournalTypeLiquidationReward:
		return "liquidation_reward"
	case JournalTypeLiquidationSurplus:
		return "liquidation_surplus"
	default:
		return "unknown"
	}
}

// Journal is a single double-entry record: a positive amount moves from the
// credit account to the debit account. Balance is guaranteed per entry by
// construction.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // idempotency key of the producing operation
	Sequence      int64
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Asset         string
	Amount        *big.Int // always positive
	JournalType   JournalType
	Timestamp     int64 // epoch microseconds
}

// Batch groups the journal entries of one committed operation.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed: non-empty, positive amounts,
// consistent batch ids, no self-transfers.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}
	for _, j := range b.Journals {
		if j.Amount == nil || j.Amount.Sign() <= 0 {
			return fmt.Errorf("journal %s has non-positive amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}
	return nil
}

// Append adds an entry to the batch, stamping batch-level fields.
func (b *Batch) Append(jt JournalType, debit, credit AccountKey, asset string, amount *big.Int) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         asset,
		Amount:        new(big.Int).Set(amount),
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// NewBatch creates an empty batch for one operation.
func NewBatch(eventRef string, sequence, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
	}
}
