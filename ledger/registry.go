package ledger

import "github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"

// Address identifies an account: the hex encoding of its Ed25519 public key.
type Address string

// AddressFromPublicKey derives the account address for a public key.
func AddressFromPublicKey(pk crypto.PublicKey) Address {
	return Address(pk.String())
}

// accessRegistry tracks the administrative owner, the provider set and the
// global pause flag. It holds no lock of its own: the owning Ledger
// serializes all access.
type accessRegistry struct {
	owner     Address
	providers map[Address]bool
	paused    bool
}

func newAccessRegistry(owner Address) *accessRegistry {
	return &accessRegistry{
		owner:     owner,
		providers: make(map[Address]bool),
	}
}

func (r *accessRegistry) isOwner(account Address) bool {
	return account == r.owner
}

func (r *accessRegistry) isProvider(account Address) bool {
	return r.providers[account]
}

// transferOwnership replaces the owner. Returns false if the owner is
// unchanged.
func (r *accessRegistry) transferOwnership(newOwner Address) bool {
	if r.owner == newOwner {
		return false
	}
	r.owner = newOwner
	return true
}

// addProvider flips membership on. Returns false if already a provider
// (idempotent, no event in that case).
func (r *accessRegistry) addProvider(account Address) bool {
	if r.providers[account] {
		return false
	}
	r.providers[account] = true
	return true
}

// removeProvider flips membership off. Returns false if not a provider.
func (r *accessRegistry) removeProvider(account Address) bool {
	if !r.providers[account] {
		return false
	}
	delete(r.providers, account)
	return true
}

func (r *accessRegistry) setPaused(paused bool) bool {
	if r.paused == paused {
		return false
	}
	r.paused = paused
	return true
}
