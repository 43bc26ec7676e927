// Package testutil provides a wired ledger/oracle fixture for tests.
//
// The fixture uses the insecure demo scheme, an in-memory store and a
// local oracle with manual result delivery, so tests control exactly when
// a disclosure callback fires relative to other ledger mutations.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/oracle"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/storage"
)

// Clock is a controllable clock for cooldown tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fixture is a ledger wired to a local oracle with manual delivery.
type Fixture struct {
	Scheme       *fhe.InsecureScheme
	Oracle       *oracle.LocalOracle
	OracleSigner crypto.PrivateKey
	OracleKey    crypto.PublicKey
	Ledger       *ledger.Ledger
	Store        ledger.Store
	Owner        ledger.Address
	Identity     []byte
	Clock        *Clock
}

// NewFixture creates a fully wired fixture. The cooldown starts at zero so
// tests that do not exercise rate limits are unaffected; cooldown tests set
// their own window through the owner.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return NewFixtureWithStore(t, storage.NewInMemoryStore())
}

// NewFixtureWithStore wires the fixture around a caller-supplied store, so
// persistence fault tests can inject stores that fail on demand.
func NewFixtureWithStore(t *testing.T, store ledger.Store) *Fixture {
	t.Helper()

	scheme := fhe.NewInsecureScheme([]byte("fixture scheme key, 32 bytes...."))

	_, oracleKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	oraclePub, err := oracleKey.PublicKey()
	require.NoError(t, err)
	localOracle := oracle.NewLocalOracle(scheme, oracleKey)

	_, owner := NewAccount(t)
	clock := NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	identity := []byte("fixture-ledger")

	l, err := ledger.New(ledger.Config{
		Owner:     owner,
		Scheme:    scheme,
		Oracle:    localOracle,
		OracleKey: oraclePub,
		Identity:  identity,
		Cooldown:  time.Nanosecond,
		Store:     store,
		Now:       clock.Now,
	})
	require.NoError(t, err)

	return &Fixture{
		Scheme:       scheme,
		Oracle:       localOracle,
		OracleSigner: oracleKey,
		OracleKey:    oraclePub,
		Ledger:       l,
		Store:        store,
		Owner:        owner,
		Identity:     identity,
		Clock:        clock,
	}
}

// NewAccount generates a fresh keypair and its ledger address.
func NewAccount(t *testing.T) (crypto.PrivateKey, ledger.Address) {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return priv, ledger.AddressFromPublicKey(pub)
}

// NewProvider generates an account and registers it as a provider.
func (f *Fixture) NewProvider(t *testing.T) ledger.Address {
	t.Helper()
	_, account := NewAccount(t)
	require.NoError(t, f.Ledger.AddProvider(f.Owner, account))
	return account
}

// Deliver pulls the signed result for a pending oracle request and feeds it
// into the ledger's disclosure callback.
func (f *Fixture) Deliver(t *testing.T, requestID uint64) (ledger.SummaryTotals, error) {
	t.Helper()
	cleartext, proof, err := f.Oracle.Result(requestID)
	require.NoError(t, err)
	return f.Ledger.OnDisclosureResult(requestID, cleartext, proof)
}
