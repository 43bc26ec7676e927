package ledger

import "errors"

// Authorization errors: the caller lacks the required role. Rejected before
// any state change.
var (
	ErrUnauthorized = errors.New("caller is not the owner")
	ErrNotProvider  = errors.New("caller is not a registered provider")
)

// Availability errors: the operation is valid in principle but invalid in
// the current lifecycle state. Rejected before any state change.
var (
	ErrSystemPaused   = errors.New("system is paused")
	ErrBatchClosed    = errors.New("current batch is closed")
	ErrBatchNotClosed = errors.New("batch is not closed")
	ErrUnknownBatch   = errors.New("batch does not exist")
)

// Rate errors: the caller must retry later.
var ErrCooldownActive = errors.New("cooldown active")

// Integrity errors: detected only while processing a disclosure callback.
// All are fatal for that request; there is no retry path, so any integrity
// failure other than a replay leaves the request permanently pending.
var (
	ErrUnknownRequest    = errors.New("unknown disclosure request")
	ErrReplayRejected    = errors.New("disclosure request already processed")
	ErrStateMismatch     = errors.New("ciphertext snapshot does not match commitment")
	ErrInvalidProof      = errors.New("oracle proof verification failed")
	ErrInvalidDecryption = errors.New("cleartext has unexpected shape")
)
