package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LendLedger/internal/engine"
)

// execer is satisfied by both *sql.DB and *sql.Tx so batch writes can run
// inside the worker's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EventRow is one row in lend.events.
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	Payload   []byte // JSON-encoded event payload
	StateHash string
	PrevHash  string
	Timestamp time.Time
}

// JournalRow is one row in lend.journal. Amounts are stored as NUMERIC
// strings; they exceed int64 range.
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	Asset         string
	Amount        string
	JournalType   string
	Timestamp     int64
}

// RowsFromOutput flattens one committed engine output into its storage rows.
func RowsFromOutput(out engine.Output) (EventRow, []JournalRow) {
	env := out.Envelope
	eventRow := EventRow{
		Sequence:  int64(env.Sequence),
		EventID:   env.EventID.String(),
		EventType: string(env.Type),
		Payload:   env.Payload,
		StateHash: env.StateHash,
		PrevHash:  env.PrevStateHash,
		Timestamp: time.UnixMicro(env.Timestamp).UTC(),
	}
	journalRows := make([]JournalRow, 0, len(out.Batch.Journals))
	for _, j := range out.Batch.Journals {
		journalRows = append(journalRows, JournalRow{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			Sequence:      j.Sequence,
			DebitAccount:  j.DebitAccount.AccountPath(),
			CreditAccount: j.CreditAccount.AccountPath(),
			Asset:         j.Asset,
			Amount:        j.Amount.String(),
			JournalType:   j.JournalType.String(),
			Timestamp:     j.Timestamp,
		})
	}
	return eventRow, journalRows
}

// EventLogWriter writes events and journals to Postgres using multi-row
// INSERT batches. Writes are idempotent: replays conflict on the primary
// key and are dropped.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to lend.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, exec execer, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO lend.events
		(sequence, event_id, event_type, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, e.Payload,
			e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := exec.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch writes a batch of journal entries to lend.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, exec execer, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	query := `INSERT INTO lend.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, asset, amount, journal_type, timestamp)
		VALUES `

	values := make([]string, 0, len(journals))
	args := make([]interface{}, 0, len(journals)*10)

	for i, j := range journals {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.Asset, j.Amount,
			j.JournalType, j.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (journal_id) DO NOTHING"

	_, err := exec.ExecContext(ctx, query, args...)
	return err
}
