package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/tdx"
)

// Client submits decryption requests to a remote oracled instance. It
// implements the ledger's OracleSubmitter interface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the oracle at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SubmitDecryptionRequest posts the handles and returns the oracle-assigned
// request id.
func (c *Client) SubmitDecryptionRequest(ctx context.Context, handles []fhe.Ciphertext) (uint64, error) {
	body, err := json.Marshal(&DecryptionRequest{Handles: handles})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oracle/decrypt", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submitting to oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(respBody))
	}

	ack, err := crypto.DecodeMessage[DecryptionResponse](resp.Body)
	if err != nil {
		return 0, fmt.Errorf("decoding oracle response: %w", err)
	}
	return ack.RequestID, nil
}

// FetchRegistrationData retrieves the oracle's signing key and attestation.
func (c *Client) FetchRegistrationData(ctx context.Context) (*RegistrationData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oracle/registration-data", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching registration data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}
	return crypto.DecodeMessage[RegistrationData](resp.Body)
}

// Service exposes a LocalOracle over HTTP and posts results back to the
// ledger's callback endpoint. This is the oracled request path: accept a
// submission, acknowledge with the request id, then decrypt, sign and
// deliver from a background goroutine.
type Service struct {
	oracle      *LocalOracle
	provider    tdx.Provider
	callbackURL string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewService wires a LocalOracle to a ledger callback URL. The provider
// attests the oracle's signing key for /oracle/registration-data; a nil
// provider disables attestation.
func NewService(o *LocalOracle, provider tdx.Provider, callbackURL string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		oracle:      o,
		provider:    provider,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
	o.SetResultHandler(s.postResult, true)
	return s
}

// RegisterRoutes registers the oracle endpoints.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/oracle/decrypt", s.handleDecrypt)
	r.Get("/oracle/registration-data", s.handleRegistrationData)
}

func (s *Service) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := crypto.DecodeMessage[DecryptionRequest](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	requestID, err := s.oracle.SubmitDecryptionRequest(r.Context(), req.Handles)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&DecryptionResponse{RequestID: requestID})
}

func (s *Service) handleRegistrationData(w http.ResponseWriter, r *http.Request) {
	data, err := s.RegistrationData()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// postResult delivers a signed result to the ledger's callback endpoint.
func (s *Service) postResult(requestID uint64, cleartext []byte, proof crypto.Signature) error {
	body, err := json.Marshal(&ResultEnvelope{RequestID: requestID, Cleartext: cleartext, Proof: proof})
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(s.callbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		s.log.Error("posting disclosure result", "request", requestID, "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		s.log.Error("ledger rejected disclosure result", "request", requestID, "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	s.log.Info("delivered disclosure result", "request", requestID)
	return nil
}
