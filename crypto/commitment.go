package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Commitment binds a disclosure request to the exact ciphertext snapshot it
// was issued for: SHA3-256 over the length-prefixed ciphertext handles in
// submission order, followed by the ledger's identity. The callback handler
// recomputes it from live state; any mismatch means the aggregate was
// mutated or substituted between request and callback.
type Commitment [32]byte

// ComputeCommitment hashes the ciphertext handles in the given order
// together with the ledger identity. Order is part of the contract: the
// disclosure protocol always passes [deposited, withdrawn].
func ComputeCommitment(handles [][]byte, ledgerIdentity []byte) Commitment {
	h := sha3.New256()
	var lenBuf [8]byte
	for _, handle := range handles {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(handle)))
		h.Write(lenBuf[:])
		h.Write(handle)
	}
	h.Write(ledgerIdentity)

	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// Equal compares two commitments.
func (c Commitment) Equal(other Commitment) bool {
	return c == other
}
