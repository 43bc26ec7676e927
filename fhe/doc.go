// Package fhe defines the ledger's boundary to the homomorphic encryption
// service. The ledger only ever encrypts plaintext hours into opaque
// Ciphertext handles and folds handles together with Add; it can never
// decrypt. Decryption capability is deliberately absent from the Scheme
// interface so that cleartext can only surface through the disclosure
// protocol's authenticated oracle callback.
//
// InsecureScheme is a test double for the external service. It is
// additively homomorphic over masked values but offers no real security;
// its Decrypt method is consumed by package oracle only.
package fhe
