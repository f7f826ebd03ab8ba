package event

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// GenesisHash seeds the state-hash chain before any event exists.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Envelope wraps one committed event with its position in the log and the
// state-hash chain. StateHash covers the previous hash, the sequence, the
// type, and the payload bytes, so any mutation of a stored event breaks
// verification of every later envelope.
type Envelope struct {
	Sequence      uint64          `json:"sequence"`
	EventID       uuid.UUID       `json:"event_id"`
	Type          EventType       `json:"type"`
	Timestamp     int64           `json:"timestamp"` // epoch microseconds
	Payload       json.RawMessage `json:"payload"`
	PrevStateHash string          `json:"prev_state_hash"`
	StateHash     string          `json:"state_hash"`
}

// NewEnvelope seals payload into the chain after prevHash.
func NewEnvelope(sequence uint64, typ EventType, timestamp int64, payload any, prevHash string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("event: marshal %s payload: %w", typ, err)
	}
	env := Envelope{
		Sequence:      sequence,
		EventID:       uuid.New(),
		Type:          typ,
		Timestamp:     timestamp,
		Payload:       raw,
		PrevStateHash: prevHash,
	}
	env.StateHash = env.computeHash()
	return env, nil
}

func (e Envelope) computeHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevStateHash))
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], e.Sequence)
	h.Write(seq[:])
	h.Write([]byte(e.Type))
	h.Write(e.Payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the hash and checks it against the stored value.
func (e Envelope) Verify() bool {
	return e.StateHash == e.computeHash()
}

// VerifyChain checks hash integrity and linkage across an ordered slice of
// envelopes. The first envelope may link to any prior hash; callers supply
// GenesisHash when verifying from the start of the log.
func VerifyChain(envelopes []Envelope) error {
	for i, env := range envelopes {
		if !env.Verify() {
			return fmt.Errorf("event: envelope %d fails hash verification", env.Sequence)
		}
		if i > 0 {
			prev := envelopes[i-1]
			if env.PrevStateHash != prev.StateHash {
				return fmt.Errorf("event: envelope %d does not link to %d", env.Sequence, prev.Sequence)
			}
			if env.Sequence != prev.Sequence+1 {
				return fmt.Errorf("event: sequence gap between %d and %d", prev.Sequence, env.Sequence)
			}
		}
	}
	return nil
}
