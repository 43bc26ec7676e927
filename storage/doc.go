// Package storage persists accepted ledger mutations. The ledger writes
// through its Store interface after every accepted operation; on start it
// restores from the persisted snapshot. PostgresStore backs production
// deployments, InMemoryStore backs tests and demos.
package storage
