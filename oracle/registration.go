package oracle

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/tdx"
)

// RegistrationData binds the oracle's signing key to a TEE attestation. A
// ledger operator fetches it once and verifies the attestation before
// configuring the key as the trusted proof verifier.
type RegistrationData struct {
	PublicKey       string `json:"public_key"`
	AttestationType string `json:"attestation_type,omitempty"`
	Attestation     []byte `json:"attestation,omitempty"`
}

// reportDataForKey derives the 64-byte TEE report data binding a signing
// key: SHA3-256 of the key in the first half, zero padding in the second.
func reportDataForKey(pub crypto.PublicKey) [64]byte {
	var reportData [64]byte
	sum := sha3.Sum256(pub.Bytes())
	copy(reportData[:], sum[:])
	return reportData
}

// RegistrationData produces the oracle's attested registration blob.
func (s *Service) RegistrationData() (*RegistrationData, error) {
	pub, err := s.oracle.PublicKey()
	if err != nil {
		return nil, err
	}

	data := &RegistrationData{PublicKey: pub.String()}
	if s.provider == nil {
		return data, nil
	}

	attestation, err := s.provider.Attest(reportDataForKey(pub))
	if err != nil {
		return nil, fmt.Errorf("attesting signing key: %w", err)
	}
	data.AttestationType = s.provider.AttestationType()
	data.Attestation = attestation
	return data, nil
}

// VerifyRegistration checks the attestation over the oracle's signing key
// and returns the key on success. A nil provider skips attestation and
// trusts the key as-is (demo deployments).
func VerifyRegistration(provider tdx.Provider, data *RegistrationData) (crypto.PublicKey, error) {
	pub, err := crypto.NewPublicKeyFromString(data.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle public key: %w", err)
	}

	if provider == nil {
		return pub, nil
	}
	if len(data.Attestation) == 0 {
		return nil, errors.New("no attestation data")
	}
	if _, err := provider.Verify(data.Attestation, reportDataForKey(pub)); err != nil {
		return nil, fmt.Errorf("could not verify attestation: %w", err)
	}
	return pub, nil
}
