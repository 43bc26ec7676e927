package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

// DefaultCooldown is the initial per-account action cooldown, owner-settable
// at runtime.
const DefaultCooldown = 60 * time.Second

// OracleSubmitter is the ledger's view of the external decryption oracle.
// SubmitDecryptionRequest returns the oracle-assigned request id
// synchronously; the cleartext result arrives later as an independent
// OnDisclosureResult invocation.
type OracleSubmitter interface {
	SubmitDecryptionRequest(ctx context.Context, handles []fhe.Ciphertext) (uint64, error)
}

// Config configures a Ledger instance.
type Config struct {
	// Owner is the administrative owner's account address.
	Owner Address

	// Scheme provides encryption and homomorphic addition of hour amounts.
	Scheme fhe.Scheme

	// Oracle receives decryption requests for closed batch aggregates.
	Oracle OracleSubmitter

	// OracleKey verifies proofs on disclosure callbacks.
	OracleKey crypto.PublicKey

	// Identity is bound into every disclosure commitment so a callback
	// cannot be replayed against another ledger instance.
	Identity []byte

	// Cooldown is the initial per-account action cooldown. Zero means
	// DefaultCooldown.
	Cooldown time.Duration

	// Store persists accepted mutations. Optional; nil disables
	// persistence.
	Store Store

	// Log is the structured logger. Optional.
	Log *slog.Logger

	// Now overrides the clock, for tests. Optional.
	Now func() time.Time
}

// Ledger is the confidential time-exchange ledger. A single mutex
// serializes every state-mutating entry point, giving operations a total
// order; the only concurrency concern left is the gap between a disclosure
// request and its callback, which the commitment check covers.
type Ledger struct {
	mu sync.Mutex

	scheme    fhe.Scheme
	oracle    OracleSubmitter
	oracleKey crypto.PublicKey
	identity  []byte
	store     Store
	log       *slog.Logger
	now       func() time.Time

	registry  *accessRegistry
	cooldowns *cooldownTracker
	batches   *batchManager
	requests  map[uint64]*DisclosureRecord

	events *EventLog
}

// New creates a Ledger with batch 1 open. When the configured store holds a
// snapshot, state is restored from it and the config's Owner and Cooldown
// are ignored in favor of the persisted values.
func New(cfg Config) (*Ledger, error) {
	if cfg.Scheme == nil {
		return nil, fmt.Errorf("config: scheme is required")
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("config: owner is required")
	}

	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := &Ledger{
		scheme:    cfg.Scheme,
		oracle:    cfg.Oracle,
		oracleKey: cfg.OracleKey,
		identity:  cfg.Identity,
		store:     cfg.Store,
		log:       log,
		now:       now,
		registry:  newAccessRegistry(cfg.Owner),
		cooldowns: newCooldownTracker(cooldown),
		batches:   newBatchManager(),
		requests:  make(map[uint64]*DisclosureRecord),
		events:    NewEventLog(),
	}

	if cfg.Store != nil {
		snapshot, err := cfg.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
		if snapshot != nil {
			l.restore(snapshot)
		} else {
			// Seed an empty store with the initial meta and batch, so
			// state written before the first meta-changing admin call
			// (providers, cooldowns, batch aggregates) is restorable.
			if err := l.saveMeta(); err != nil {
				return nil, err
			}
			if err := l.saveBatch(batchRecord(l.batches.current())); err != nil {
				return nil, err
			}
		}
	}

	return l, nil
}

func (l *Ledger) restore(s *Snapshot) {
	l.registry.owner = s.Meta.Owner
	l.registry.paused = s.Meta.Paused
	l.cooldowns.cooldown = s.Meta.Cooldown
	for _, p := range s.Providers {
		l.registry.providers[p] = true
	}
	for _, c := range s.Cooldowns {
		if _, ok := l.cooldowns.last[c.Class]; !ok {
			l.cooldowns.last[c.Class] = make(map[Address]time.Time)
		}
		l.cooldowns.last[c.Class][c.Account] = c.Last
	}
	if s.Meta.CurrentBatchID > 0 {
		l.batches.currentID = s.Meta.CurrentBatchID
		l.batches.batches = make(map[uint64]*batchState, len(s.Batches))
		for _, b := range s.Batches {
			l.batches.batches[b.ID] = &batchState{
				id:             b.ID,
				closed:         b.Closed,
				totalDeposited: aggregate{handle: b.TotalDeposited},
				totalWithdrawn: aggregate{handle: b.TotalWithdrawn},
			}
		}
		if _, ok := l.batches.batches[s.Meta.CurrentBatchID]; !ok {
			l.batches.batches[s.Meta.CurrentBatchID] = &batchState{id: s.Meta.CurrentBatchID}
		}
	}
	for _, r := range s.Requests {
		req := r
		l.requests[r.ID] = &req
	}
}

// Events exposes the ledger's event feed.
func (l *Ledger) Events() *EventLog {
	return l.events
}

// Owner returns the current administrative owner.
func (l *Ledger) Owner() Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registry.owner
}

// IsProvider reports provider membership.
func (l *Ledger) IsProvider(account Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registry.isProvider(account)
}

// Paused reports the global pause flag.
func (l *Ledger) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registry.paused
}

// CurrentBatchID returns the id of the current batch.
func (l *Ledger) CurrentBatchID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batches.currentID
}

// BatchInfo returns the persisted view of a batch.
func (l *Ledger) BatchInfo(id uint64) (BatchRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches.get(id)
	if !ok {
		return BatchRecord{}, ErrUnknownBatch
	}
	return batchRecord(b), nil
}

func batchRecord(b *batchState) BatchRecord {
	return BatchRecord{
		ID:             b.id,
		Closed:         b.closed,
		TotalDeposited: b.totalDeposited.handle,
		TotalWithdrawn: b.totalWithdrawn.handle,
	}
}

// --- Admin surface (owner-only) ---

func (l *Ledger) requireOwner(caller Address) error {
	if !l.registry.isOwner(caller) {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership atomically replaces the owner.
func (l *Ledger) TransferOwnership(caller, newOwner Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if !l.registry.transferOwnership(newOwner) {
		return nil
	}
	if err := l.saveMeta(); err != nil {
		return err
	}
	l.events.Append(Event{Time: l.now(), Type: EventOwnershipTransferred, Account: caller, NewOwner: newOwner})
	return nil
}

// AddProvider authorizes an account to submit operations. Idempotent: no
// event when membership is unchanged.
func (l *Ledger) AddProvider(caller, account Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if !l.registry.addProvider(account) {
		return nil
	}
	if err := l.saveProvider(account, true); err != nil {
		return err
	}
	l.events.Append(Event{Time: l.now(), Type: EventProviderAdded, Account: account})
	return nil
}

// RemoveProvider revokes an account's provider role. Idempotent.
func (l *Ledger) RemoveProvider(caller, account Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if !l.registry.removeProvider(account) {
		return nil
	}
	if err := l.saveProvider(account, false); err != nil {
		return err
	}
	l.events.Append(Event{Time: l.now(), Type: EventProviderRemoved, Account: account})
	return nil
}

// Pause gates every provider-facing operation.
func (l *Ledger) Pause(caller Address) error {
	return l.setPaused(caller, true, EventPaused)
}

// Unpause lifts the global pause.
func (l *Ledger) Unpause(caller Address) error {
	return l.setPaused(caller, false, EventUnpaused)
}

func (l *Ledger) setPaused(caller Address, paused bool, evType EventType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if !l.registry.setPaused(paused) {
		return nil
	}
	if err := l.saveMeta(); err != nil {
		return err
	}
	l.events.Append(Event{Time: l.now(), Type: evType, Account: caller})
	return nil
}

// SetCooldown replaces the per-account action cooldown.
func (l *Ledger) SetCooldown(caller Address, d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	old := l.cooldowns.setCooldown(d)
	if err := l.saveMeta(); err != nil {
		return err
	}
	l.events.Append(Event{Time: l.now(), Type: EventCooldownChanged, Account: caller, OldCooldown: old, NewCooldown: d})
	return nil
}

// OpenNewBatch opens the next sequential batch. Operations against the
// previous batch remain rejected if it was closed.
func (l *Ledger) OpenNewBatch(caller Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return 0, err
	}
	id := l.batches.openNew()
	if err := l.saveBatch(batchRecord(l.batches.current())); err != nil {
		return 0, err
	}
	if err := l.saveMeta(); err != nil {
		return 0, err
	}
	l.events.Append(Event{Time: l.now(), Type: EventBatchOpened, Account: caller, BatchID: id})
	return id, nil
}

// CloseCurrentBatch freezes the current batch's aggregates forever. It does
// not open a successor: provider operations fail with ErrBatchClosed until
// the owner opens one.
func (l *Ledger) CloseCurrentBatch(caller Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return 0, err
	}
	id, changed, err := l.batches.closeCurrent(l.scheme)
	if err != nil {
		return 0, err
	}
	if !changed {
		return id, nil
	}
	if err := l.saveBatch(batchRecord(l.batches.current())); err != nil {
		return 0, err
	}
	l.events.Append(Event{Time: l.now(), Type: EventBatchClosed, Account: caller, BatchID: id})
	return id, nil
}

// --- Provider surface ---

// DepositTime records an hour deposit in the current batch. The amount is
// encrypted immediately; the returned handle (also carried on the event) is
// the only representation that ever leaves the ledger. The returned batch id
// is the batch the deposit was folded into.
func (l *Ledger) DepositTime(caller Address, amount uint32) (fhe.Ciphertext, uint64, error) {
	return l.submit(caller, amount, EventTimeDeposited)
}

// WithdrawTime records an hour withdrawal in the current batch.
func (l *Ledger) WithdrawTime(caller Address, amount uint32) (fhe.Ciphertext, uint64, error) {
	return l.submit(caller, amount, EventTimeWithdrawn)
}

func (l *Ledger) submit(caller Address, amount uint32, evType EventType) (fhe.Ciphertext, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.gateProvider(caller); err != nil {
		return nil, 0, err
	}
	batch := l.batches.current()
	if batch.closed {
		return nil, 0, ErrBatchClosed
	}

	now := l.now()
	prior, hadPrior := l.cooldowns.lastAction(caller, SubmissionClass)
	if err := l.cooldowns.checkAndRecord(caller, SubmissionClass, now); err != nil {
		return nil, 0, err
	}

	handle, err := l.scheme.Encrypt(amount)
	if err != nil {
		l.rollbackCooldown(caller, SubmissionClass, prior, hadPrior)
		return nil, 0, fmt.Errorf("encrypting amount: %w", err)
	}

	agg := &batch.totalDeposited
	if evType == EventTimeWithdrawn {
		agg = &batch.totalWithdrawn
	}
	next := *agg
	if err := next.fold(l.scheme, handle); err != nil {
		l.rollbackCooldown(caller, SubmissionClass, prior, hadPrior)
		return nil, 0, err
	}

	// Persist the prospective record before touching in-memory state. A
	// store failure then leaves the aggregate and the cooldown window
	// exactly as they were, so the caller can retry without the amount
	// being counted twice.
	record := batchRecord(batch)
	if evType == EventTimeWithdrawn {
		record.TotalWithdrawn = next.handle
	} else {
		record.TotalDeposited = next.handle
	}
	if err := l.saveCooldown(caller, SubmissionClass, now); err != nil {
		l.rollbackCooldown(caller, SubmissionClass, prior, hadPrior)
		return nil, 0, err
	}
	if err := l.saveBatch(record); err != nil {
		l.rollbackCooldown(caller, SubmissionClass, prior, hadPrior)
		return nil, 0, err
	}

	*agg = next
	l.events.Append(Event{Time: now, Type: evType, Account: caller, BatchID: batch.id, Handle: handle})
	return handle, batch.id, nil
}

func (l *Ledger) gateProvider(caller Address) error {
	if !l.registry.isProvider(caller) {
		return ErrNotProvider
	}
	if l.registry.paused {
		return ErrSystemPaused
	}
	return nil
}

// rollbackCooldown undoes a checkAndRecord when the gated action fails
// after the check, so a failed action never consumes the account's window.
func (l *Ledger) rollbackCooldown(account Address, class ActionClass, prior time.Time, hadPrior bool) {
	if hadPrior {
		l.cooldowns.last[class][account] = prior
		return
	}
	delete(l.cooldowns.last[class], account)
}

// --- Persistence helpers ---

func (l *Ledger) saveMeta() error {
	if l.store == nil {
		return nil
	}
	meta := Meta{
		Owner:          l.registry.owner,
		Paused:         l.registry.paused,
		Cooldown:       l.cooldowns.cooldown,
		CurrentBatchID: l.batches.currentID,
	}
	if err := l.store.SaveMeta(meta); err != nil {
		l.log.Error("persisting ledger meta", "err", err)
		return fmt.Errorf("persisting meta: %w", err)
	}
	return nil
}

func (l *Ledger) saveProvider(account Address, isProvider bool) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveProvider(account, isProvider); err != nil {
		l.log.Error("persisting provider", "account", account, "err", err)
		return fmt.Errorf("persisting provider: %w", err)
	}
	return nil
}

func (l *Ledger) saveCooldown(account Address, class ActionClass, last time.Time) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveCooldown(CooldownEntry{Account: account, Class: class, Last: last}); err != nil {
		l.log.Error("persisting cooldown", "account", account, "err", err)
		return fmt.Errorf("persisting cooldown: %w", err)
	}
	return nil
}

func (l *Ledger) saveBatch(b BatchRecord) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveBatch(b); err != nil {
		l.log.Error("persisting batch", "batch", b.ID, "err", err)
		return fmt.Errorf("persisting batch: %w", err)
	}
	return nil
}

func (l *Ledger) saveRequest(r *DisclosureRecord) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveDisclosureRequest(*r); err != nil {
		l.log.Error("persisting disclosure request", "request", r.ID, "err", err)
		return fmt.Errorf("persisting disclosure request: %w", err)
	}
	return nil
}
