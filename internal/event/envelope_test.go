package event_test

import (
	"math/big"
	"testing"

	"LendLedger/internal/event"
)

func sealChain(t *testing.T, n int) []event.Envelope {
	t.Helper()
	out := make([]event.Envelope, 0, n)
	prev := event.GenesisHash
	for i := 1; i <= n; i++ {
		env, err := event.NewEnvelope(uint64(i), event.TypeDepositMade, int64(i)*1000, &event.DepositMade{
			Owner:  "alice",
			Asset:  "ETH",
			Amount: big.NewInt(int64(i)),
		}, prev)
		if err != nil {
			t.Fatalf("NewEnvelope %d: %v", i, err)
		}
		out = append(out, env)
		prev = env.StateHash
	}
	return out
}

// ============================================================================
// Test: Envelope
// ============================================================================

func TestEnvelope_Verify(t *testing.T) {
	env := sealChain(t, 1)[0]
	if !env.Verify() {
		t.Error("freshly sealed envelope should verify")
	}
}

func TestEnvelope_TamperedPayloadFailsVerify(t *testing.T) {
	env := sealChain(t, 1)[0]
	env.Payload = []byte(`{"owner":"mallory"}`)
	if env.Verify() {
		t.Error("tampered payload should fail verification")
	}
}

func TestEnvelope_TamperedSequenceFailsVerify(t *testing.T) {
	env := sealChain(t, 1)[0]
	env.Sequence++
	if env.Verify() {
		t.Error("tampered sequence should fail verification")
	}
}

// ============================================================================
// Test: VerifyChain
// ============================================================================

func TestVerifyChain_ValidChain(t *testing.T) {
	chain := sealChain(t, 5)
	if err := event.VerifyChain(chain); err != nil {
		t.Errorf("valid chain rejected: %v", err)
	}
}

func TestVerifyChain_BrokenLink(t *testing.T) {
	chain := sealChain(t, 3)
	chain[1].PrevStateHash = event.GenesisHash
	chain[1].StateHash = "" // recompute would be needed; just break the hash too
	if err := event.VerifyChain(chain); err == nil {
		t.Error("broken link should fail chain verification")
	}
}

func TestVerifyChain_SequenceGap(t *testing.T) {
	chain := sealChain(t, 3)
	// Drop the middle envelope: hashes still verify individually but the
	// linkage breaks.
	gapped := []event.Envelope{chain[0], chain[2]}
	if err := event.VerifyChain(gapped); err == nil {
		t.Error("sequence gap should fail chain verification")
	}
}
