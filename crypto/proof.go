package crypto

import "encoding/binary"

// DisclosureProofMessage is the byte string the oracle signs when returning
// a decryption result: the big-endian request id followed by the cleartext.
// Both the oracle and the ledger's callback handler must build it
// identically or proof verification cannot match.
func DisclosureProofMessage(requestID uint64, cleartext []byte) []byte {
	msg := make([]byte, 8+len(cleartext))
	binary.BigEndian.PutUint64(msg[:8], requestID)
	copy(msg[8:], cleartext)
	return msg
}
