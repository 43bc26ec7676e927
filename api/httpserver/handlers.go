package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/fhe"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/metrics"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/oracle"
)

// SubmitRequest is the signed payload for deposit and withdraw operations.
// The route determines the direction; the caller is the recovered signer.
type SubmitRequest struct {
	Amount uint32 `json:"amount"`
}

// SummaryRequest is the signed payload for a batch summary request.
type SummaryRequest struct {
	BatchID uint64 `json:"batch_id"`
}

// TransferOwnershipRequest names the new owner account.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

// ProviderRequest names the account whose provider role changes.
type ProviderRequest struct {
	Account string `json:"account"`
}

// PauseRequest is an empty signed admin payload for pause and unpause.
type PauseRequest struct{}

// CooldownRequest carries the new cooldown window.
type CooldownRequest struct {
	Seconds uint64 `json:"seconds"`
}

// BatchRequest is an empty signed admin payload for batch open and close.
type BatchRequest struct{}

// SubmitResponse acknowledges an accepted operation with the encrypted
// handle and target batch.
type SubmitResponse struct {
	BatchID uint64 `json:"batch_id"`
	Handle  []byte `json:"handle"`
}

// SummaryResponse acknowledges an issued disclosure request.
type SummaryResponse struct {
	RequestID uint64 `json:"request_id"`
}

// BatchIDResponse acknowledges a batch lifecycle change.
type BatchIDResponse struct {
	BatchID uint64 `json:"batch_id"`
}

// StateResponse is the public view of the ledger's global state.
type StateResponse struct {
	Owner          ledger.Address `json:"owner"`
	Paused         bool           `json:"paused"`
	CurrentBatchID uint64         `json:"current_batch_id"`
}

// LedgerHandler registers the ledger's HTTP routes.
type LedgerHandler struct {
	ledger *ledger.Ledger
	log    *slog.Logger
}

// NewLedgerHandler creates a handler around a ledger instance.
func NewLedgerHandler(l *ledger.Ledger, log *slog.Logger) *LedgerHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LedgerHandler{ledger: l, log: log}
}

// RegisterRoutes registers provider, admin, oracle and query routes.
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ledger/deposit", h.deposit)
	r.Post("/ledger/withdraw", h.withdraw)
	r.Post("/ledger/request-summary", h.requestSummary)

	r.Post("/oracle/result", h.oracleResult)

	r.Get("/ledger/state", h.state)
	r.Get("/ledger/batch/{id}", h.batch)
	r.Get("/ledger/requests/{id}", h.disclosureRequest)
	r.Get("/ledger/events", h.events)

	r.Post("/admin/transfer-ownership", h.transferOwnership)
	r.Post("/admin/providers/add", h.addProvider)
	r.Post("/admin/providers/remove", h.removeProvider)
	r.Post("/admin/pause", h.pause)
	r.Post("/admin/unpause", h.unpause)
	r.Post("/admin/cooldown", h.setCooldown)
	r.Post("/admin/batches/open", h.openBatch)
	r.Post("/admin/batches/close", h.closeBatch)
}

// recoverCaller decodes a signed request body and returns the payload and
// the caller address derived from the recovered signer.
func recoverCaller[T any](w http.ResponseWriter, r *http.Request) (*T, ledger.Address, bool) {
	defer r.Body.Close()
	signedReq, err := crypto.DecodeMessage[crypto.Signed[T]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse request: %v", err), http.StatusBadRequest)
		return nil, "", false
	}

	obj, signer, err := signedReq.Recover()
	if err != nil {
		http.Error(w, fmt.Sprintf("could not recover request signature: %v", err), http.StatusUnauthorized)
		return nil, "", false
	}
	return obj, ledger.AddressFromPublicKey(signer), true
}

// statusForError maps the ledger error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrNotProvider):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrSystemPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrBatchClosed), errors.Is(err, ledger.ErrBatchNotClosed), errors.Is(err, ledger.ErrReplayRejected):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnknownBatch), errors.Is(err, ledger.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidProof):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrStateMismatch), errors.Is(err, ledger.ErrInvalidDecryption):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// reasonForError labels rejections for metrics.
func reasonForError(err error) string {
	for _, sentinel := range []struct {
		err    error
		reason string
	}{
		{ledger.ErrUnauthorized, "unauthorized"},
		{ledger.ErrNotProvider, "not_provider"},
		{ledger.ErrSystemPaused, "paused"},
		{ledger.ErrBatchClosed, "batch_closed"},
		{ledger.ErrBatchNotClosed, "batch_not_closed"},
		{ledger.ErrUnknownBatch, "unknown_batch"},
		{ledger.ErrCooldownActive, "cooldown"},
		{ledger.ErrUnknownRequest, "unknown_request"},
		{ledger.ErrReplayRejected, "replay"},
		{ledger.ErrStateMismatch, "state_mismatch"},
		{ledger.ErrInvalidProof, "invalid_proof"},
		{ledger.ErrInvalidDecryption, "invalid_decryption"},
	} {
		if errors.Is(err, sentinel.err) {
			return sentinel.reason
		}
	}
	return "internal"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *LedgerHandler) deposit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "deposit")
}

func (h *LedgerHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "withdraw")
}

func (h *LedgerHandler) submit(w http.ResponseWriter, r *http.Request, kind string) {
	req, caller, ok := recoverCaller[SubmitRequest](w, r)
	if !ok {
		return
	}

	var (
		handle  fhe.Ciphertext
		batchID uint64
		err     error
	)
	if kind == "deposit" {
		handle, batchID, err = h.ledger.DepositTime(caller, req.Amount)
	} else {
		handle, batchID, err = h.ledger.WithdrawTime(caller, req.Amount)
	}
	if err != nil {
		metrics.OperationsRejected.WithLabelValues(kind, reasonForError(err)).Inc()
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	metrics.OperationsAccepted.WithLabelValues(kind).Inc()
	writeJSON(w, &SubmitResponse{BatchID: batchID, Handle: handle.Bytes()})
}

func (h *LedgerHandler) requestSummary(w http.ResponseWriter, r *http.Request) {
	req, caller, ok := recoverCaller[SummaryRequest](w, r)
	if !ok {
		return
	}

	requestID, err := h.ledger.RequestBatchSummary(r.Context(), caller, req.BatchID)
	if err != nil {
		metrics.OperationsRejected.WithLabelValues("request_summary", reasonForError(err)).Inc()
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	metrics.OperationsAccepted.WithLabelValues("request_summary").Inc()
	writeJSON(w, &SummaryResponse{RequestID: requestID})
}

// oracleResult is the asynchronous callback entry point. The body is not a
// signed request: the proof inside authenticates the oracle's output, and
// caller identity is deliberately not trusted.
func (h *LedgerHandler) oracleResult(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	envelope, err := crypto.DecodeMessage[oracle.ResultEnvelope](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse result: %v", err), http.StatusBadRequest)
		return
	}

	totals, err := h.ledger.OnDisclosureResult(envelope.RequestID, envelope.Cleartext, envelope.Proof)
	if err != nil {
		metrics.DisclosuresFailed.WithLabelValues(reasonForError(err)).Inc()
		h.log.Warn("rejected disclosure result", "request", envelope.RequestID, "err", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	metrics.DisclosuresCompleted.Inc()
	h.log.Info("disclosure completed",
		"request", totals.RequestID, "batch", totals.BatchID,
		"deposited", totals.TotalDeposited, "withdrawn", totals.TotalWithdrawn)
	writeJSON(w, &totals)
}

func (h *LedgerHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, &StateResponse{
		Owner:          h.ledger.Owner(),
		Paused:         h.ledger.Paused(),
		CurrentBatchID: h.ledger.CurrentBatchID(),
	})
}

func (h *LedgerHandler) batch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid batch id: %v", err), http.StatusBadRequest)
		return
	}

	record, err := h.ledger.BatchInfo(id)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, &record)
}

func (h *LedgerHandler) disclosureRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid request id: %v", err), http.StatusBadRequest)
		return
	}

	record, err := h.ledger.DisclosureRequestInfo(id)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, &record)
}

func (h *LedgerHandler) events(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	writeJSON(w, h.ledger.Events().Recent(limit))
}

// --- Admin endpoints. The ledger enforces owner-only access; handlers just
// recover the caller identity. ---

func (h *LedgerHandler) transferOwnership(w http.ResponseWriter, r *http.Request) {
	req, caller, ok := recoverCaller[TransferOwnershipRequest](w, r)
	if !ok {
		return
	}
	h.adminResult(w, h.ledger.TransferOwnership(caller, ledger.Address(req.NewOwner)))
}

func (h *LedgerHandler) addProvider(w http.ResponseWriter, r *http.Request) {
	req, caller, ok := recoverCaller[ProviderRequest](w, r)
	if !ok {
		return
	}
	h.adminResult(w, h.ledger.AddProvider(caller, ledger.Address(req.Account)))
}

func (h *LedgerHandler) removeProvider(w http.ResponseWriter, r *http.Request) {
	req, caller, ok := recoverCaller[ProviderRequest](w, r)
	if !ok {
		return
	}
	h.adminResult(w, h.ledger.RemoveProvider(caller, ledger.Address(req.Account)))
}

func (h *LedgerHandler) pause(w http.ResponseWriter, r *http.Request) {
	_, caller, ok := recoverCaller[PauseRequest](w, r)
	if !ok {
		return
	}
	h.adminResult(w, h.ledger.Pause(caller))
}

func (h *LedgerHandler) unpause(w http.ResponseWriter, r *http.Request) {
	_, caller, ok := recoverCaller[PauseRequest](w, r)
	if !ok {
		return
	}
	h.adminResult(w, h.ledger.Unpause(caller))
}

func (h *LedgerHandler) setCooldown(w http.ResponseWriter, r *http.Request) {
	req, caller, ok := recoverCaller[CooldownRequest](w, r)
	if !ok {
		return
	}
	h.adminResult(w, h.ledger.SetCooldown(caller, time.Duration(req.Seconds)*time.Second))
}

func (h *LedgerHandler) openBatch(w http.ResponseWriter, r *http.Request) {
	_, caller, ok := recoverCaller[BatchRequest](w, r)
	if !ok {
		return
	}
	id, err := h.ledger.OpenNewBatch(caller)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, &BatchIDResponse{BatchID: id})
}

func (h *LedgerHandler) closeBatch(w http.ResponseWriter, r *http.Request) {
	_, caller, ok := recoverCaller[BatchRequest](w, r)
	if !ok {
		return
	}
	id, err := h.ledger.CloseCurrentBatch(caller)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, &BatchIDResponse{BatchID: id})
}

func (h *LedgerHandler) adminResult(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}
