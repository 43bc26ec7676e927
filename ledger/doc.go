// Package ledger implements the confidential time-exchange ledger: providers
// deposit and withdraw hours whose amounts are held as opaque encrypted
// handles, operations are grouped into sequential batches, and a closed
// batch's aggregate can be revealed only through the disclosure protocol's
// authenticated oracle callback.
//
// Every state-mutating entry point is serialized by a single mutex; the only
// asynchronous gap in the system is between submitting a decryption request
// and receiving its callback, and the commitment check in the callback
// handler closes it.
package ledger
