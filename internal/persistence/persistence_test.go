package persistence_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"LendLedger/internal/engine"
	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	"LendLedger/internal/persistence"
	"LendLedger/internal/query"
	"LendLedger/internal/testutil"
)

// testOutput builds one committed output by hand: a sealed envelope plus a
// balanced journal batch.
func testOutput(t *testing.T, sequence uint64, prevHash string) engine.Output {
	t.Helper()
	env, err := event.NewEnvelope(sequence, event.TypeDepositMade, time.Now().UnixMicro(), &event.DepositMade{
		Owner:  "alice",
		Asset:  "ETH",
		Amount: big.NewInt(int64(sequence) * 1000),
	}, prevHash)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	batch := ledger.NewBatch("deposit:alice:ETH", int64(sequence), env.Timestamp)
	batch.Append(ledger.JournalTypeDeposit,
		ledger.NewUserAccountKey("alice", ledger.SubTypeDeposited, "ETH"),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, "ETH"),
		"ETH", big.NewInt(int64(sequence)*1000))
	return engine.Output{Envelope: env, Batch: batch}
}

func TestEventLogWriter_WriteAndReadBack(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	writer := persistence.NewEventLogWriter(db)

	prev := event.GenesisHash
	var events []persistence.EventRow
	var journals []persistence.JournalRow
	for seq := uint64(1); seq <= 3; seq++ {
		out := testOutput(t, seq, prev)
		prev = out.Envelope.StateHash
		e, js := persistence.RowsFromOutput(out)
		events = append(events, e)
		journals = append(journals, js...)
	}

	if err := writer.WriteEventBatch(ctx, db, events); err != nil {
		t.Fatalf("WriteEventBatch: %v", err)
	}
	if err := writer.WriteJournalBatch(ctx, db, journals); err != nil {
		t.Fatalf("WriteJournalBatch: %v", err)
	}

	svc := query.NewService(db)
	got, err := svc.ListEvents(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("events: got %d, want 3", len(got))
	}
	if got[0].Sequence != 1 || got[2].Sequence != 3 {
		t.Errorf("events out of order: first %d, last %d", got[0].Sequence, got[2].Sequence)
	}
	if got[0].PrevHash != event.GenesisHash {
		t.Errorf("first prev hash: got %s, want genesis", got[0].PrevHash)
	}

	latest, err := svc.LatestSequence(ctx)
	if err != nil {
		t.Fatalf("LatestSequence: %v", err)
	}
	if latest != 3 {
		t.Errorf("latest sequence: got %d, want 3", latest)
	}

	entries, err := svc.ListJournal(ctx, "user:alice:deposited:ETH", 10)
	if err != nil {
		t.Fatalf("ListJournal: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("journal entries: got %d, want 3", len(entries))
	}
	if entries[0].Sequence != 3 {
		t.Errorf("journal order: first sequence %d, want 3 (newest first)", entries[0].Sequence)
	}
	if entries[0].Amount != "3000" {
		t.Errorf("amount: got %s, want 3000", entries[0].Amount)
	}
}

func TestEventLogWriter_ReplayIsIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	writer := persistence.NewEventLogWriter(db)

	out := testOutput(t, 1, event.GenesisHash)
	e, js := persistence.RowsFromOutput(out)

	for i := 0; i < 2; i++ {
		if err := writer.WriteEventBatch(ctx, db, []persistence.EventRow{e}); err != nil {
			t.Fatalf("WriteEventBatch pass %d: %v", i, err)
		}
		if err := writer.WriteJournalBatch(ctx, db, js); err != nil {
			t.Fatalf("WriteJournalBatch pass %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lend.events`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Errorf("events after replay: got %d, want 1", count)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lend.journal`).Scan(&count); err != nil {
		t.Fatalf("count journal: %v", err)
	}
	if count != 1 {
		t.Errorf("journal after replay: got %d, want 1", count)
	}
}

func TestSnapshotManager_SaveLoadRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sm := persistence.NewSnapshotManager(db)

	// Cold start: no snapshot.
	snap, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected cold start, got snapshot at sequence %d", snap.Sequence)
	}

	first := engine.Snapshot{
		Sequence:  7,
		StateHash: "abc123",
		Balances: []ledger.BalanceSnapshot{
			{Owner: "alice", Asset: "ETH", Free: big.NewInt(100), Locked: big.NewInt(25)},
		},
		Liquidity: map[string]*big.Int{"USDC": big.NewInt(9500)},
	}
	if err := sm.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	second := first
	second.Sequence = 9
	second.StateHash = "def456"
	if err := sm.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot: %v", err)
	}
	if loaded == nil || loaded.Sequence != 9 {
		t.Fatalf("loaded snapshot: got %+v, want sequence 9", loaded)
	}
	if loaded.StateHash != "def456" {
		t.Errorf("state hash: got %s, want def456", loaded.StateHash)
	}
	if len(loaded.Balances) != 1 || loaded.Balances[0].Free.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("balances did not round trip: %+v", loaded.Balances)
	}
	if loaded.Liquidity["USDC"].Cmp(big.NewInt(9500)) != 0 {
		t.Errorf("liquidity did not round trip: %s", loaded.Liquidity["USDC"])
	}
}
