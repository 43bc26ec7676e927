// Package oracle implements the decryption-oracle boundary of the timebank
// ledger. The ledger submits ciphertext handles and receives an
// oracle-assigned request id synchronously; the cleartext result arrives
// later as an independent callback carrying an Ed25519 proof over the
// request id and cleartext. The ledger trusts the proof, never the caller.
//
// LocalOracle holds the decryption capability in-process and is used by
// tests, demos, and the oracled binary. Client talks to a remote oracled
// over HTTP and implements the ledger's submission interface.
package oracle
