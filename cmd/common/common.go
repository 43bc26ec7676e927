// Package common provides shared utilities for the ledgerd and oracled
// command binaries:
//
//   - Key loading and generation for Ed25519 signing keys and for the
//     shared symmetric key of the demo encryption scheme
//   - TEE attestation provider selection from flags
//   - Structured logger setup
package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/tdx"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// LoadOrGenerateSchemeKey loads the demo scheme's symmetric key from a hex
// string, or generates 32 random bytes if hexKey is empty. The ledger and
// the oracle must be started with the same key.
func LoadOrGenerateSchemeKey(hexKey string) ([]byte, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return keyBytes, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewAttestationProvider creates a TEE provider based on configuration
// flags. Returns TDXProvider when useTDX is true, otherwise DummyProvider
// for testing and demo deployments.
func NewAttestationProvider(useTDX bool) tdx.Provider {
	if useTDX {
		return &tdx.TDXProvider{}
	}
	return &tdx.DummyProvider{}
}

// SetupLogger creates the process-wide structured logger and installs it as
// the slog default.
func SetupLogger(json bool, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
