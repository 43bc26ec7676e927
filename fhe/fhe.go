package fhe

import (
	"encoding/hex"
)

// Ciphertext is an opaque handle over an encrypted hour amount.
// Handle equality is not meaningful for business logic; only the
// accumulated homomorphic sum matters. The zero value is the
// uninitialized handle, which is not a valid Add operand.
type Ciphertext []byte

// NewCiphertextFromBytes creates a Ciphertext from a byte slice.
// The input is copied to keep the handle immutable.
func NewCiphertextFromBytes(data []byte) Ciphertext {
	ct := make([]byte, len(data))
	copy(ct, data)
	return Ciphertext(ct)
}

// Bytes returns the raw handle, used for commitments and transport.
func (ct Ciphertext) Bytes() []byte {
	return ct
}

// IsInitialized reports whether the handle refers to an actual encrypted
// value. An uninitialized handle must be seeded with an encrypted zero
// before it can participate in homomorphic addition.
func (ct Ciphertext) IsInitialized() bool {
	return len(ct) > 0
}

// String returns a hex encoding of the handle for logging and events.
func (ct Ciphertext) String() string {
	return hex.EncodeToString(ct)
}

// Scheme is the encryption capability available to the ledger: encrypt a
// plaintext amount and homomorphically add two ciphertexts. Decryption is
// intentionally not part of this interface.
type Scheme interface {
	// Encrypt converts a plaintext hour amount into a fresh handle.
	Encrypt(plaintext uint32) (Ciphertext, error)

	// Add returns a handle over the sum of the two operands. Both
	// operands must be initialized.
	Add(a, b Ciphertext) (Ciphertext, error)
}
