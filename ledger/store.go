package ledger

import (
	"time"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

// Meta is the ledger's global persisted state.
type Meta struct {
	Owner          Address       `json:"owner"`
	Paused         bool          `json:"paused"`
	Cooldown       time.Duration `json:"cooldown"`
	CurrentBatchID uint64        `json:"current_batch_id"`
}

// BatchRecord is the persisted form of a batch.
type BatchRecord struct {
	ID             uint64         `json:"id"`
	Closed         bool           `json:"closed"`
	TotalDeposited fhe.Ciphertext `json:"total_deposited"`
	TotalWithdrawn fhe.Ciphertext `json:"total_withdrawn"`
}

// DisclosureRecord is the persisted form of a disclosure request.
type DisclosureRecord struct {
	ID         uint64            `json:"id"`
	BatchID    uint64            `json:"batch_id"`
	Commitment crypto.Commitment `json:"commitment"`
	Processed  bool              `json:"processed"`
}

// CooldownEntry is the persisted form of a cooldown record.
type CooldownEntry struct {
	Account Address     `json:"account"`
	Class   ActionClass `json:"class"`
	Last    time.Time   `json:"last"`
}

// Snapshot is the full persisted ledger state, used to restore on start.
type Snapshot struct {
	Meta      Meta
	Providers []Address
	Batches   []BatchRecord
	Requests  []DisclosureRecord
	Cooldowns []CooldownEntry
}

// Store persists accepted state mutations. The ledger writes through after
// every accepted operation and loads a snapshot on start. Implementations
// live in package storage.
type Store interface {
	SaveMeta(meta Meta) error
	SaveProvider(account Address, isProvider bool) error
	SaveCooldown(entry CooldownEntry) error
	SaveBatch(batch BatchRecord) error
	SaveDisclosureRequest(request DisclosureRecord) error

	// Load returns the persisted snapshot, or nil when the store is empty.
	Load() (*Snapshot, error)
}
