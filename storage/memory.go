package storage

import (
	"sync"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
)

// InMemoryStore implements ledger.Store without a database.
type InMemoryStore struct {
	mu        sync.Mutex
	hasMeta   bool
	meta      ledger.Meta
	providers map[ledger.Address]bool
	cooldowns map[ledger.ActionClass]map[ledger.Address]ledger.CooldownEntry
	batches   map[uint64]ledger.BatchRecord
	requests  map[uint64]ledger.DisclosureRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		providers: make(map[ledger.Address]bool),
		cooldowns: make(map[ledger.ActionClass]map[ledger.Address]ledger.CooldownEntry),
		batches:   make(map[uint64]ledger.BatchRecord),
		requests:  make(map[uint64]ledger.DisclosureRecord),
	}
}

// SaveMeta stores the global ledger state.
func (s *InMemoryStore) SaveMeta(meta ledger.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
	s.hasMeta = true
	return nil
}

// SaveProvider stores provider membership.
func (s *InMemoryStore) SaveProvider(account ledger.Address, isProvider bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isProvider {
		s.providers[account] = true
	} else {
		delete(s.providers, account)
	}
	return nil
}

// SaveCooldown stores a cooldown record.
func (s *InMemoryStore) SaveCooldown(entry ledger.CooldownEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	classMap, ok := s.cooldowns[entry.Class]
	if !ok {
		classMap = make(map[ledger.Address]ledger.CooldownEntry)
		s.cooldowns[entry.Class] = classMap
	}
	classMap[entry.Account] = entry
	return nil
}

// SaveBatch stores a batch record.
func (s *InMemoryStore) SaveBatch(batch ledger.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = batch
	return nil
}

// SaveDisclosureRequest stores a disclosure request record.
func (s *InMemoryStore) SaveDisclosureRequest(request ledger.DisclosureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = request
	return nil
}

// Load returns the stored snapshot, or nil when no meta was ever saved.
func (s *InMemoryStore) Load() (*ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasMeta {
		return nil, nil
	}

	snapshot := &ledger.Snapshot{Meta: s.meta}
	for account := range s.providers {
		snapshot.Providers = append(snapshot.Providers, account)
	}
	for _, classMap := range s.cooldowns {
		for _, entry := range classMap {
			snapshot.Cooldowns = append(snapshot.Cooldowns, entry)
		}
	}
	for _, batch := range s.batches {
		snapshot.Batches = append(snapshot.Batches, batch)
	}
	for _, request := range s.requests {
		snapshot.Requests = append(snapshot.Requests, request)
	}
	return snapshot, nil
}
