package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore()

	// An empty store yields no snapshot
	snapshot, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, snapshot)

	meta := ledger.Meta{
		Owner:          "owner",
		Paused:         true,
		Cooldown:       30 * time.Second,
		CurrentBatchID: 2,
	}
	require.NoError(t, store.SaveMeta(meta))
	require.NoError(t, store.SaveProvider("p1", true))
	require.NoError(t, store.SaveProvider("p2", true))
	require.NoError(t, store.SaveProvider("p2", false))

	last := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCooldown(ledger.CooldownEntry{
		Account: "p1", Class: ledger.SubmissionClass, Last: last,
	}))

	batch := ledger.BatchRecord{
		ID:             1,
		Closed:         true,
		TotalDeposited: fhe.NewCiphertextFromBytes([]byte{1, 2}),
		TotalWithdrawn: fhe.NewCiphertextFromBytes([]byte{3, 4}),
	}
	require.NoError(t, store.SaveBatch(batch))

	request := ledger.DisclosureRecord{
		ID:         1,
		BatchID:    1,
		Commitment: crypto.ComputeCommitment([][]byte{{1, 2}, {3, 4}}, []byte("id")),
	}
	require.NoError(t, store.SaveDisclosureRequest(request))

	snapshot, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.Equal(t, meta, snapshot.Meta)
	require.Equal(t, []ledger.Address{"p1"}, snapshot.Providers)
	require.Len(t, snapshot.Cooldowns, 1)
	require.Equal(t, last, snapshot.Cooldowns[0].Last)
	require.Equal(t, []ledger.BatchRecord{batch}, snapshot.Batches)
	require.Equal(t, []ledger.DisclosureRecord{request}, snapshot.Requests)

	// Upserts replace earlier records
	request.Processed = true
	require.NoError(t, store.SaveDisclosureRequest(request))
	snapshot, err = store.Load()
	require.NoError(t, err)
	require.Len(t, snapshot.Requests, 1)
	require.True(t, snapshot.Requests[0].Processed)
}
