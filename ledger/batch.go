package ledger

import (
	"fmt"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

// aggregate is a running homomorphic sum with an explicit uninitialized
// state. An uninitialized handle is not a valid Add operand, so the first
// fold seeds the aggregate with an encrypted zero before adding.
type aggregate struct {
	handle fhe.Ciphertext
}

func (a *aggregate) fold(scheme fhe.Scheme, operand fhe.Ciphertext) error {
	if !a.handle.IsInitialized() {
		zero, err := scheme.Encrypt(0)
		if err != nil {
			return fmt.Errorf("encrypting zero: %w", err)
		}
		a.handle = zero
	}
	sum, err := scheme.Add(a.handle, operand)
	if err != nil {
		return fmt.Errorf("homomorphic add: %w", err)
	}
	a.handle = sum
	return nil
}

// materialize seeds an uninitialized aggregate with an encrypted zero so a
// closed batch always has valid disclosure operands.
func (a *aggregate) materialize(scheme fhe.Scheme) error {
	if a.handle.IsInitialized() {
		return nil
	}
	zero, err := scheme.Encrypt(0)
	if err != nil {
		return fmt.Errorf("encrypting zero: %w", err)
	}
	a.handle = zero
	return nil
}

// batchState is the per-batch record: status plus the two running
// aggregates. Once closed the aggregates are frozen forever.
type batchState struct {
	id             uint64
	closed         bool
	totalDeposited aggregate
	totalWithdrawn aggregate
}

// batchManager owns the lifecycle of sequential batches. Batch ids start at
// 1 and exactly one batch is open at a time; closing does not auto-open a
// successor. The owning Ledger serializes all access.
type batchManager struct {
	currentID uint64
	batches   map[uint64]*batchState
}

func newBatchManager() *batchManager {
	return &batchManager{
		currentID: 1,
		batches:   map[uint64]*batchState{1: {id: 1}},
	}
}

func (m *batchManager) current() *batchState {
	return m.batches[m.currentID]
}

func (m *batchManager) get(id uint64) (*batchState, bool) {
	b, ok := m.batches[id]
	return b, ok
}

func (m *batchManager) isOpen(id uint64) bool {
	b, ok := m.batches[id]
	return ok && id == m.currentID && !b.closed
}

// openNew increments the current batch id and opens the new batch.
func (m *batchManager) openNew() uint64 {
	m.currentID++
	m.batches[m.currentID] = &batchState{id: m.currentID}
	return m.currentID
}

// closeCurrent freezes the current batch. Uninitialized aggregates are
// materialized to encrypted zero first, so every closed batch can be
// disclosed. Returns false if the batch was already closed.
func (m *batchManager) closeCurrent(scheme fhe.Scheme) (uint64, bool, error) {
	b := m.current()
	if b.closed {
		return b.id, false, nil
	}
	if err := b.totalDeposited.materialize(scheme); err != nil {
		return b.id, false, err
	}
	if err := b.totalWithdrawn.materialize(scheme); err != nil {
		return b.id, false, err
	}
	b.closed = true
	return b.id, true, nil
}
