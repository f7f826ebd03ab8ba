// Package query serves the read side that the live engine cannot answer:
// event-log history and journal audit trails out of Postgres.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Service reads the append-only tables. Writes happen only through the
// persistence worker.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// EventRecord is one event-log row as served to API clients.
type EventRecord struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// JournalRecord is one journal row as served to API clients.
type JournalRecord struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	JournalType   string `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// ListEvents returns events from fromSequence onward, oldest first.
func (s *Service) ListEvents(ctx context.Context, fromSequence int64, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_id, event_type, payload, state_hash, prev_hash, timestamp
		FROM lend.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(
			&e.Sequence, &e.EventID, &e.EventType, &e.Payload,
			&e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListJournal returns journal entries touching one account, newest first.
func (s *Service) ListJournal(ctx context.Context, account string, limit int) ([]JournalRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT journal_id, batch_id, event_ref, sequence, debit_account, credit_account,
		       asset, amount, journal_type, timestamp
		FROM lend.journal
		WHERE debit_account = $1 OR credit_account = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journals []JournalRecord
	for rows.Next() {
		var j JournalRecord
		if err := rows.Scan(
			&j.JournalID, &j.BatchID, &j.EventRef, &j.Sequence,
			&j.DebitAccount, &j.CreditAccount, &j.Asset, &j.Amount,
			&j.JournalType, &j.Timestamp,
		); err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

// LatestSequence returns the highest persisted sequence, zero for an empty
// log.
func (s *Service) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM lend.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
