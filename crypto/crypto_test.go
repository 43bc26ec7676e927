package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Amount  uint32 `json:"amount"`
	BatchID uint64 `json:"batch_id"`
}

func TestSignedRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &testPayload{Amount: 5, BatchID: 1})
	require.NoError(t, err)

	// Survives JSON transport
	serialized, err := SerializeMessage(signed)
	require.NoError(t, err)
	decoded, err := UnmarshalMessage[Signed[testPayload]](serialized)
	require.NoError(t, err)

	obj, signer, err := decoded.Recover()
	require.NoError(t, err)
	require.True(t, pub.Equal(signer))
	require.Equal(t, uint32(5), obj.Amount)

	// Tampering with the object breaks recovery
	decoded.Object.Amount = 500
	_, _, err = decoded.Recover()
	require.Error(t, err)

	// Substituting the public key breaks recovery
	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	decoded.Object.Amount = 5
	decoded.PublicKey = otherPub
	_, _, err = decoded.Recover()
	require.Error(t, err)
}

func TestSignatureVerify(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := Sign(priv, []byte("payload"))
	require.NoError(t, err)
	require.True(t, sig.Verify(pub, []byte("payload")))
	require.False(t, sig.Verify(pub, []byte("other payload")))

	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, sig.Verify(otherPub, []byte("payload")))
}

func TestCommitmentBinding(t *testing.T) {
	identity := []byte("ledger-1")
	handles := [][]byte{[]byte("deposited-handle"), []byte("withdrawn-handle")}

	c := ComputeCommitment(handles, identity)
	require.True(t, c.Equal(ComputeCommitment(handles, identity)))

	// Handle order is part of the commitment
	swapped := [][]byte{handles[1], handles[0]}
	require.False(t, c.Equal(ComputeCommitment(swapped, identity)))

	// The ledger identity is part of the commitment
	require.False(t, c.Equal(ComputeCommitment(handles, []byte("ledger-2"))))

	// Length framing: shifting bytes across handle boundaries changes it
	a := ComputeCommitment([][]byte{[]byte("ab"), []byte("c")}, identity)
	b := ComputeCommitment([][]byte{[]byte("a"), []byte("bc")}, identity)
	require.False(t, a.Equal(b))
}

func TestDisclosureProofMessage(t *testing.T) {
	msg := DisclosureProofMessage(0x0102030405060708, []byte{0xAA, 0xBB})
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 0xAA, 0xBB}, msg)

	// The request id is bound into the signed message
	require.NotEqual(t, DisclosureProofMessage(1, []byte{0xAA}), DisclosureProofMessage(2, []byte{0xAA}))
}
