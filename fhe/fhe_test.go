package fhe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsecureSchemeRoundTrip(t *testing.T) {
	scheme := NewInsecureScheme([]byte("test key"))

	ct, err := scheme.Encrypt(42)
	require.NoError(t, err)
	require.True(t, ct.IsInitialized())

	v, err := scheme.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)

	// Encryptions are randomized
	ct2, err := scheme.Encrypt(42)
	require.NoError(t, err)
	require.NotEqual(t, ct.Bytes(), ct2.Bytes())
}

func TestInsecureSchemeAdd(t *testing.T) {
	scheme := NewInsecureScheme([]byte("test key"))

	a, err := scheme.Encrypt(3)
	require.NoError(t, err)
	b, err := scheme.Encrypt(4)
	require.NoError(t, err)

	sum, err := scheme.Add(a, b)
	require.NoError(t, err)
	v, err := scheme.Decrypt(sum)
	require.NoError(t, err)
	require.Equal(t, uint32(7), v)

	// Uninitialized operands are rejected
	_, err = scheme.Add(a, nil)
	require.Error(t, err)
	_, err = scheme.Add(Ciphertext{}, b)
	require.Error(t, err)
}

func TestInsecureSchemeRejectsMalformedHandle(t *testing.T) {
	scheme := NewInsecureScheme([]byte("test key"))

	_, err := scheme.Decrypt(Ciphertext("too short"))
	require.Error(t, err)

	// A handle under a different key opens to garbage, not an error; the
	// disclosure proof is what protects against that, not the scheme.
	other := NewInsecureScheme([]byte("another key"))
	ct, err := other.Encrypt(1)
	require.NoError(t, err)
	_, _ = scheme.Decrypt(ct)
}

func TestInsecureSchemeOverflowDetection(t *testing.T) {
	scheme := NewInsecureScheme([]byte("test key"))

	a, err := scheme.Encrypt(0xFFFFFFFF)
	require.NoError(t, err)
	b, err := scheme.Encrypt(1)
	require.NoError(t, err)

	// The internal sum is 64-bit, so the overflow is caught at decryption
	sum, err := scheme.Add(a, b)
	require.NoError(t, err)
	_, err = scheme.Decrypt(sum)
	require.Error(t, err)
}

func TestCiphertextCopySemantics(t *testing.T) {
	raw := []byte{1, 2, 3}
	ct := NewCiphertextFromBytes(raw)
	raw[0] = 9
	require.Equal(t, []byte{1, 2, 3}, ct.Bytes())
	require.Equal(t, "010203", ct.String())
}
