// Package crypto provides the identity and authentication primitives used by
// the timebank ledger: Ed25519 keys for signing provider and admin requests,
// signatures used as oracle proofs, and the SHA3-256 commitment that binds a
// disclosure request to the exact ciphertext snapshot it was issued for.
//
// The homomorphic encryption primitives themselves live in package fhe; this
// package only covers authentication.
package crypto
