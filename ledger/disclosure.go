package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

// cleartextSize is the exact callback payload length: two big-endian
// 32-bit totals, deposited then withdrawn.
const cleartextSize = 8

// SummaryTotals is an authenticated cleartext batch summary, the only
// plaintext the system ever produces.
type SummaryTotals struct {
	RequestID      uint64 `json:"request_id"`
	BatchID        uint64 `json:"batch_id"`
	TotalDeposited uint32 `json:"total_deposited"`
	TotalWithdrawn uint32 `json:"total_withdrawn"`
}

// disclosureHandles returns a closed batch's ciphertext snapshot in the
// fixed [deposited, withdrawn] order. The order is part of the disclosure
// contract: the commitment and the callback re-derivation must both use it
// or authentication cannot match.
func disclosureHandles(b *batchState) [][]byte {
	return [][]byte{
		b.totalDeposited.handle.Bytes(),
		b.totalWithdrawn.handle.Bytes(),
	}
}

// RequestBatchSummary issues a decryption request for a closed batch's
// aggregates. It records a commitment over the exact ciphertext snapshot
// and the ledger identity, submits the handles to the oracle, and stores a
// pending request keyed by the oracle-assigned id. The call returns as soon
// as the oracle has accepted the request; the cleartext arrives later via
// OnDisclosureResult.
func (l *Ledger) RequestBatchSummary(ctx context.Context, caller Address, batchID uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.gateProvider(caller); err != nil {
		return 0, err
	}
	if l.oracle == nil {
		return 0, fmt.Errorf("no oracle configured")
	}

	batch, ok := l.batches.get(batchID)
	if !ok {
		return 0, ErrUnknownBatch
	}
	if !batch.closed {
		return 0, ErrBatchNotClosed
	}

	now := l.now()
	prior, hadPrior := l.cooldowns.lastAction(caller, DisclosureClass)
	if err := l.cooldowns.checkAndRecord(caller, DisclosureClass, now); err != nil {
		return 0, err
	}

	handles := disclosureHandles(batch)
	commitment := crypto.ComputeCommitment(handles, l.identity)

	requestID, err := l.oracle.SubmitDecryptionRequest(ctx, []fhe.Ciphertext{
		batch.totalDeposited.handle,
		batch.totalWithdrawn.handle,
	})
	if err != nil {
		l.rollbackCooldown(caller, DisclosureClass, prior, hadPrior)
		return 0, fmt.Errorf("submitting decryption request: %w", err)
	}

	request := &DisclosureRecord{
		ID:         requestID,
		BatchID:    batchID,
		Commitment: commitment,
	}
	l.requests[requestID] = request

	if err := l.saveRequest(request); err != nil {
		return 0, err
	}
	if err := l.saveCooldown(caller, DisclosureClass, now); err != nil {
		return 0, err
	}
	l.events.Append(Event{Time: now, Type: EventSummaryRequested, Account: caller, BatchID: batchID, RequestID: requestID})
	return requestID, nil
}

// OnDisclosureResult consumes the oracle's callback for a pending request,
// exactly once. Checks run in a fixed order: replay, commitment, proof,
// cleartext shape. Any failure leaves the request unprocessed (and, since
// there is no re-request mechanism, permanently pending); only a fully
// verified callback marks it processed and emits the cleartext summary.
func (l *Ledger) OnDisclosureResult(requestID uint64, cleartext []byte, proof crypto.Signature) (SummaryTotals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	request, ok := l.requests[requestID]
	if !ok {
		return SummaryTotals{}, ErrUnknownRequest
	}
	if request.Processed {
		return SummaryTotals{}, ErrReplayRejected
	}

	// Re-derive the snapshot from live state. Closed batches are
	// immutable, so a mismatch means substitution or corruption.
	batch, ok := l.batches.get(request.BatchID)
	if !ok {
		return SummaryTotals{}, ErrStateMismatch
	}
	if !crypto.ComputeCommitment(disclosureHandles(batch), l.identity).Equal(request.Commitment) {
		return SummaryTotals{}, ErrStateMismatch
	}

	if !proof.Verify(l.oracleKey, crypto.DisclosureProofMessage(requestID, cleartext)) {
		return SummaryTotals{}, ErrInvalidProof
	}

	if len(cleartext) != cleartextSize {
		return SummaryTotals{}, ErrInvalidDecryption
	}
	totals := SummaryTotals{
		RequestID:      requestID,
		BatchID:        request.BatchID,
		TotalDeposited: binary.BigEndian.Uint32(cleartext[:4]),
		TotalWithdrawn: binary.BigEndian.Uint32(cleartext[4:]),
	}

	// Persist the processed marker before flipping it in memory. If the
	// store rejects the write the request stays pending and a later
	// redelivery of the same callback can still complete it.
	persisted := *request
	persisted.Processed = true
	if err := l.saveRequest(&persisted); err != nil {
		return SummaryTotals{}, err
	}
	request.Processed = true
	l.events.Append(Event{
		Time:           l.now(),
		Type:           EventSummaryDisclosed,
		BatchID:        totals.BatchID,
		RequestID:      requestID,
		TotalDeposited: totals.TotalDeposited,
		TotalWithdrawn: totals.TotalWithdrawn,
	})
	return totals, nil
}

// DisclosureRequestInfo returns the stored view of a disclosure request.
func (l *Ledger) DisclosureRequestInfo(requestID uint64) (DisclosureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	request, ok := l.requests[requestID]
	if !ok {
		return DisclosureRecord{}, ErrUnknownRequest
	}
	return *request, nil
}
