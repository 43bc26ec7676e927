package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/testutil"
)

func TestDisclosureEndToEnd(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := fx.NewProvider(t)

	// Provider deposits 3 hours then 2 hours into batch 1
	_, _, err := fx.Ledger.DepositTime(provider, 3)
	require.NoError(t, err)
	fx.Clock.Advance(time.Second)
	_, _, err = fx.Ledger.DepositTime(provider, 2)
	require.NoError(t, err)

	_, err = fx.Ledger.CloseCurrentBatch(fx.Owner)
	require.NoError(t, err)

	requestID, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), requestID)

	record, err := fx.Ledger.DisclosureRequestInfo(requestID)
	require.NoError(t, err)
	require.False(t, record.Processed)

	totals, err := fx.Deliver(t, requestID)
	require.NoError(t, err)
	require.Equal(t, ledger.SummaryTotals{
		RequestID:      requestID,
		BatchID:        1,
		TotalDeposited: 5,
		TotalWithdrawn: 0,
	}, totals)

	record, err = fx.Ledger.DisclosureRequestInfo(requestID)
	require.NoError(t, err)
	require.True(t, record.Processed)

	// The completion event carries the cleartext totals exactly once
	events := fx.Ledger.Events().Recent(1)
	require.Len(t, events, 1)
	require.Equal(t, ledger.EventSummaryDisclosed, events[0].Type)
	require.Equal(t, uint32(5), events[0].TotalDeposited)
	require.Equal(t, uint32(0), events[0].TotalWithdrawn)

	// A repeat callback with the same id is rejected
	_, err = fx.Deliver(t, requestID)
	require.ErrorIs(t, err, ledger.ErrReplayRejected)
	require.Equal(t, ledger.EventSummaryDisclosed, fx.Ledger.Events().Recent(1)[0].Type)
}

func TestSummaryRequiresClosedBatch(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := fx.NewProvider(t)

	_, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
	require.ErrorIs(t, err, ledger.ErrBatchNotClosed)

	_, err = fx.Ledger.RequestBatchSummary(context.Background(), provider, 42)
	require.ErrorIs(t, err, ledger.ErrUnknownBatch)
}

func TestEmptyBatchDisclosesZeroTotals(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := fx.NewProvider(t)

	_, err := fx.Ledger.CloseCurrentBatch(fx.Owner)
	require.NoError(t, err)

	requestID, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
	require.NoError(t, err)

	totals, err := fx.Deliver(t, requestID)
	require.NoError(t, err)
	require.Equal(t, uint32(0), totals.TotalDeposited)
	require.Equal(t, uint32(0), totals.TotalWithdrawn)
}

func TestUnknownRequestRejected(t *testing.T) {
	fx := testutil.NewFixture(t)

	_, err := fx.Ledger.OnDisclosureResult(99, make([]byte, 8), crypto.NewSignature(make([]byte, 64)))
	require.ErrorIs(t, err, ledger.ErrUnknownRequest)
}

func TestForgedProofRejected(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := fx.NewProvider(t)

	_, _, err := fx.Ledger.DepositTime(provider, 3)
	require.NoError(t, err)
	_, err = fx.Ledger.CloseCurrentBatch(fx.Owner)
	require.NoError(t, err)
	requestID, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
	require.NoError(t, err)

	// An attacker with their own key cannot authenticate a fake cleartext
	_, attackerKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	fake := []byte{0, 0, 0, 99, 0, 0, 0, 0}
	forged, err := crypto.Sign(attackerKey, crypto.DisclosureProofMessage(requestID, fake))
	require.NoError(t, err)

	_, err = fx.Ledger.OnDisclosureResult(requestID, fake, forged)
	require.ErrorIs(t, err, ledger.ErrInvalidProof)

	// A genuine proof does not cover altered cleartext
	cleartext, proof, err := fx.Oracle.Result(requestID)
	require.NoError(t, err)
	_, err = fx.Ledger.OnDisclosureResult(requestID, append([]byte{1}, cleartext[1:]...), proof)
	require.ErrorIs(t, err, ledger.ErrInvalidProof)

	// The request stays pending and the real result still completes it
	totals, err := fx.Ledger.OnDisclosureResult(requestID, cleartext, proof)
	require.NoError(t, err)
	require.Equal(t, uint32(3), totals.TotalDeposited)
}

func TestMalformedCleartextRejected(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := fx.NewProvider(t)

	_, err := fx.Ledger.CloseCurrentBatch(fx.Owner)
	require.NoError(t, err)
	requestID, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
	require.NoError(t, err)

	// Correctly signed, wrong shape: three words instead of two
	bad := make([]byte, 12)
	proof, err := crypto.Sign(fx.OracleSigner, crypto.DisclosureProofMessage(requestID, bad))
	require.NoError(t, err)

	_, err = fx.Ledger.OnDisclosureResult(requestID, bad, proof)
	require.ErrorIs(t, err, ledger.ErrInvalidDecryption)
}

func TestCallbackAgainstDifferentIdentityRejected(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := fx.NewProvider(t)

	_, _, err := fx.Ledger.DepositTime(provider, 4)
	require.NoError(t, err)
	_, err = fx.Ledger.CloseCurrentBatch(fx.Owner)
	require.NoError(t, err)
	requestID, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
	require.NoError(t, err)

	// A second instance restored from the same store but with a different
	// identity recomputes a different commitment for the stored request.
	other, err := ledger.New(ledger.Config{
		Owner:     fx.Owner,
		Scheme:    fx.Scheme,
		Oracle:    fx.Oracle,
		OracleKey: fx.OracleKey,
		Identity:  []byte("some-other-ledger"),
		Store:     fx.Store,
		Now:       fx.Clock.Now,
	})
	require.NoError(t, err)

	cleartext, proof, err := fx.Oracle.Result(requestID)
	require.NoError(t, err)

	_, err = other.OnDisclosureResult(requestID, cleartext, proof)
	require.ErrorIs(t, err, ledger.ErrStateMismatch)

	// The instance the request was made against still accepts it
	totals, err := fx.Ledger.OnDisclosureResult(requestID, cleartext, proof)
	require.NoError(t, err)
	require.Equal(t, uint32(4), totals.TotalDeposited)
}

func TestDisclosedTotalsAreOrderIndependent(t *testing.T) {
	disclose := func(t *testing.T, amounts []uint32) ledger.SummaryTotals {
		fx := testutil.NewFixture(t)
		provider := fx.NewProvider(t)
		for _, amount := range amounts {
			_, _, err := fx.Ledger.DepositTime(provider, amount)
			require.NoError(t, err)
			fx.Clock.Advance(time.Second)
		}
		_, err := fx.Ledger.CloseCurrentBatch(fx.Owner)
		require.NoError(t, err)
		requestID, err := fx.Ledger.RequestBatchSummary(context.Background(), provider, 1)
		require.NoError(t, err)
		totals, err := fx.Deliver(t, requestID)
		require.NoError(t, err)
		return totals
	}

	a := disclose(t, []uint32{3, 2, 7})
	b := disclose(t, []uint32{7, 3, 2})
	require.Equal(t, uint32(12), a.TotalDeposited)
	require.Equal(t, a.TotalDeposited, b.TotalDeposited)
	require.Equal(t, a.TotalWithdrawn, b.TotalWithdrawn)
}
