package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
)

// Decryptor is the capability the oracle holds and the ledger never does.
// fhe.InsecureScheme satisfies it; a production deployment would wrap the
// key-management service of a real homomorphic scheme.
type Decryptor interface {
	Decrypt(ct fhe.Ciphertext) (uint32, error)
}

// ResultHandler consumes a finished decryption: the ledger's
// OnDisclosureResult entry point, or an HTTP forwarder in the service
// deployment.
type ResultHandler func(requestID uint64, cleartext []byte, proof crypto.Signature) error

// ResultEnvelope is the callback payload a remote oracle posts back to the
// ledger service.
type ResultEnvelope struct {
	RequestID uint64           `json:"request_id"`
	Cleartext []byte           `json:"cleartext"`
	Proof     crypto.Signature `json:"proof"`
}

// DecryptionRequest is the submission payload sent to a remote oracle.
type DecryptionRequest struct {
	Handles []fhe.Ciphertext `json:"handles"`
}

// DecryptionResponse acknowledges a submission with the assigned id.
type DecryptionResponse struct {
	RequestID uint64 `json:"request_id"`
}

// LocalOracle assigns request ids, decrypts submitted handles and signs
// results. Delivery is decoupled from submission: Deliver pushes the signed
// result into the configured handler, either manually (tests) or from the
// goroutine spawned on submission when auto-delivery is on.
type LocalOracle struct {
	mu         sync.Mutex
	nextID     uint64
	pending    map[uint64][]fhe.Ciphertext
	decryptor  Decryptor
	signingKey crypto.PrivateKey

	handler     ResultHandler
	autoDeliver bool
}

// NewLocalOracle creates an oracle around a decryption capability and a
// signing key. Request ids start at 1.
func NewLocalOracle(decryptor Decryptor, signingKey crypto.PrivateKey) *LocalOracle {
	return &LocalOracle{
		nextID:     1,
		pending:    make(map[uint64][]fhe.Ciphertext),
		decryptor:  decryptor,
		signingKey: signingKey,
	}
}

// PublicKey returns the key the ledger must configure to verify proofs.
func (o *LocalOracle) PublicKey() (crypto.PublicKey, error) {
	return o.signingKey.PublicKey()
}

// SetResultHandler wires the delivery target. With autoDeliver, every
// submission is decrypted and delivered from a background goroutine,
// modeling the asynchronous callback of a real oracle.
func (o *LocalOracle) SetResultHandler(handler ResultHandler, autoDeliver bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handler = handler
	o.autoDeliver = autoDeliver
}

// SubmitDecryptionRequest accepts a snapshot of ciphertext handles and
// returns the assigned request id. Handles are copied; later mutation of
// the caller's slices cannot alter the pending request.
func (o *LocalOracle) SubmitDecryptionRequest(ctx context.Context, handles []fhe.Ciphertext) (uint64, error) {
	if len(handles) == 0 {
		return 0, errors.New("no handles submitted")
	}

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	snapshot := make([]fhe.Ciphertext, len(handles))
	for i, h := range handles {
		snapshot[i] = fhe.NewCiphertextFromBytes(h.Bytes())
	}
	o.pending[id] = snapshot
	auto := o.autoDeliver && o.handler != nil
	o.mu.Unlock()

	if auto {
		go func() {
			_ = o.Deliver(id)
		}()
	}
	return id, nil
}

// Result decrypts a pending request and signs the cleartext, without
// delivering it. The cleartext is 4 big-endian bytes per submitted handle,
// in submission order.
func (o *LocalOracle) Result(requestID uint64) ([]byte, crypto.Signature, error) {
	o.mu.Lock()
	handles, ok := o.pending[requestID]
	o.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown request id %d", requestID)
	}

	cleartext := make([]byte, 0, 4*len(handles))
	for _, h := range handles {
		v, err := o.decryptor.Decrypt(h)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypting handle: %w", err)
		}
		cleartext = binary.BigEndian.AppendUint32(cleartext, v)
	}

	proof, err := crypto.Sign(o.signingKey, crypto.DisclosureProofMessage(requestID, cleartext))
	if err != nil {
		return nil, nil, fmt.Errorf("signing result: %w", err)
	}
	return cleartext, proof, nil
}

// Deliver computes the signed result for a pending request and pushes it
// into the handler.
func (o *LocalOracle) Deliver(requestID uint64) error {
	o.mu.Lock()
	handler := o.handler
	o.mu.Unlock()
	if handler == nil {
		return errors.New("no result handler configured")
	}

	cleartext, proof, err := o.Result(requestID)
	if err != nil {
		return err
	}
	return handler(requestID, cleartext, proof)
}
