package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

func TestAccessRegistry(t *testing.T) {
	r := newAccessRegistry("owner")

	require.True(t, r.isOwner("owner"))
	require.False(t, r.isProvider("owner"))

	require.True(t, r.addProvider("p1"))
	require.False(t, r.addProvider("p1"))
	require.True(t, r.isProvider("p1"))

	require.True(t, r.removeProvider("p1"))
	require.False(t, r.removeProvider("p1"))

	require.False(t, r.transferOwnership("owner"))
	require.True(t, r.transferOwnership("owner2"))
	require.False(t, r.isOwner("owner"))

	require.True(t, r.setPaused(true))
	require.False(t, r.setPaused(true))
	require.True(t, r.setPaused(false))
}

func TestCooldownTracker(t *testing.T) {
	c := newCooldownTracker(10 * time.Second)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.checkAndRecord("a", SubmissionClass, start))
	require.ErrorIs(t, c.checkAndRecord("a", SubmissionClass, start.Add(9*time.Second)), ErrCooldownActive)

	// Classes and accounts track independently
	require.NoError(t, c.checkAndRecord("a", DisclosureClass, start))
	require.NoError(t, c.checkAndRecord("b", SubmissionClass, start))

	require.NoError(t, c.checkAndRecord("a", SubmissionClass, start.Add(10*time.Second)))

	// Shrinking the window applies to existing records
	require.Equal(t, 10*time.Second, c.setCooldown(time.Second))
	require.NoError(t, c.checkAndRecord("a", SubmissionClass, start.Add(11*time.Second)))
}

func TestBatchManagerLifecycle(t *testing.T) {
	scheme := fhe.NewInsecureScheme([]byte("batch manager test key"))
	m := newBatchManager()

	require.Equal(t, uint64(1), m.currentID)
	require.True(t, m.isOpen(1))

	id, changed, err := m.closeCurrent(scheme)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, uint64(1), id)
	require.False(t, m.isOpen(1))

	// Closing an empty batch materializes both aggregates so it can be
	// disclosed
	b, ok := m.get(1)
	require.True(t, ok)
	require.True(t, b.totalDeposited.handle.IsInitialized())
	require.True(t, b.totalWithdrawn.handle.IsInitialized())

	// Closing again reports no change
	_, changed, err = m.closeCurrent(scheme)
	require.NoError(t, err)
	require.False(t, changed)

	require.Equal(t, uint64(2), m.openNew())
	require.True(t, m.isOpen(2))
	require.False(t, m.isOpen(1))
}

func TestAggregateFold(t *testing.T) {
	scheme := fhe.NewInsecureScheme([]byte("aggregate test key"))

	var agg aggregate
	require.False(t, agg.handle.IsInitialized())

	ct3, err := scheme.Encrypt(3)
	require.NoError(t, err)
	require.NoError(t, agg.fold(scheme, ct3))

	ct4, err := scheme.Encrypt(4)
	require.NoError(t, err)
	require.NoError(t, agg.fold(scheme, ct4))

	total, err := scheme.Decrypt(agg.handle)
	require.NoError(t, err)
	require.Equal(t, uint32(7), total)
}
