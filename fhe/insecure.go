package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	insecureNonceSize = 16
	insecureCTSize    = insecureNonceSize + 8
)

// InsecureScheme is an additively homomorphic test scheme: each ciphertext
// is a random nonce plus the value masked with a keyed hash of that nonce.
// Addition decrypts internally and re-encrypts under a fresh nonce, which a
// real homomorphic scheme would never need to do. Only use in tests and
// demo deployments.
type InsecureScheme struct {
	key []byte
}

// NewInsecureScheme creates a scheme instance from secret key material.
// The ledger and the demo oracle must share the same key.
func NewInsecureScheme(key []byte) *InsecureScheme {
	k := make([]byte, len(key))
	copy(k, key)
	return &InsecureScheme{key: k}
}

func (s *InsecureScheme) mask(nonce []byte) uint64 {
	h := sha3.New256()
	h.Write(s.key)
	h.Write(nonce)
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

func (s *InsecureScheme) seal(value uint64) (Ciphertext, error) {
	buf := make([]byte, insecureCTSize)
	if _, err := rand.Read(buf[:insecureNonceSize]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	binary.BigEndian.PutUint64(buf[insecureNonceSize:], value^s.mask(buf[:insecureNonceSize]))
	return Ciphertext(buf), nil
}

func (s *InsecureScheme) open(ct Ciphertext) (uint64, error) {
	if len(ct) != insecureCTSize {
		return 0, errors.New("malformed ciphertext handle")
	}
	masked := binary.BigEndian.Uint64(ct[insecureNonceSize:])
	return masked ^ s.mask(ct[:insecureNonceSize]), nil
}

// Encrypt converts a plaintext hour amount into a fresh handle.
func (s *InsecureScheme) Encrypt(plaintext uint32) (Ciphertext, error) {
	return s.seal(uint64(plaintext))
}

// Add returns a handle over the sum of the two operands.
func (s *InsecureScheme) Add(a, b Ciphertext) (Ciphertext, error) {
	if !a.IsInitialized() || !b.IsInitialized() {
		return nil, errors.New("uninitialized ciphertext operand")
	}
	va, err := s.open(a)
	if err != nil {
		return nil, err
	}
	vb, err := s.open(b)
	if err != nil {
		return nil, err
	}
	return s.seal(va + vb)
}

// Decrypt reveals the plaintext under a handle. This capability is consumed
// by the oracle only; it is deliberately not part of the Scheme interface
// the ledger sees.
func (s *InsecureScheme) Decrypt(ct Ciphertext) (uint32, error) {
	v, err := s.open(ct)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, errors.New("aggregate exceeds 32-bit domain")
	}
	return uint32(v), nil
}
