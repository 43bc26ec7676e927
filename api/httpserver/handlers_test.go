package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/api/httpserver"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/crypto"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/oracle"
	"github.com/danielsdavidyg1-62/Time-Bank-FHE/testutil"
)

type testServer struct {
	*testutil.Fixture
	srv         *httptest.Server
	ownerKey    crypto.PrivateKey
	providerKey crypto.PrivateKey
	provider    ledger.Address
}

// newTestServer wires a fixture ledger behind the HTTP handler, with
// ownership transferred to a key the test holds.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	fx := testutil.NewFixture(t)

	ownerKey, ownerAddr := testutil.NewAccount(t)
	require.NoError(t, fx.Ledger.TransferOwnership(fx.Owner, ownerAddr))
	fx.Owner = ownerAddr

	providerKey, providerAddr := testutil.NewAccount(t)
	require.NoError(t, fx.Ledger.AddProvider(ownerAddr, providerAddr))

	r := chi.NewRouter()
	httpserver.NewLedgerHandler(fx.Ledger, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		Fixture:     fx,
		srv:         srv,
		ownerKey:    ownerKey,
		providerKey: providerKey,
		provider:    providerAddr,
	}
}

func postSigned[T any](t *testing.T, url string, key crypto.PrivateKey, obj *T) *http.Response {
	t.Helper()
	signed, err := crypto.NewSigned(key, obj)
	require.NoError(t, err)
	body, err := json.Marshal(signed)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) *T {
	t.Helper()
	defer resp.Body.Close()
	out, err := crypto.DecodeMessage[T](resp.Body)
	require.NoError(t, err)
	return out
}

func TestDepositEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ack := decodeBody[httpserver.SubmitResponse](t, resp)
	require.Equal(t, uint64(1), ack.BatchID)
	require.NotEmpty(t, ack.Handle)

	// The signer is the caller: a non-provider key is rejected
	strangerKey, _ := testutil.NewAccount(t)
	resp = postSigned(t, ts.srv.URL+"/ledger/withdraw", strangerKey, &httpserver.SubmitRequest{Amount: 1})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// A tampered signature never reaches the ledger
	signed, err := crypto.NewSigned(ts.providerKey, &httpserver.SubmitRequest{Amount: 1})
	require.NoError(t, err)
	signed.Object.Amount = 1000
	body, err := json.Marshal(signed)
	require.NoError(t, err)
	badResp, err := http.Post(ts.srv.URL+"/ledger/deposit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, badResp.StatusCode)
	badResp.Body.Close()

	// Unparseable body
	garbage, err := http.Post(ts.srv.URL+"/ledger/deposit", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, garbage.StatusCode)
	garbage.Body.Close()
}

func TestCooldownMapsToTooManyRequests(t *testing.T) {
	ts := newTestServer(t)

	resp := postSigned(t, ts.srv.URL+"/admin/cooldown", ts.ownerKey, &httpserver.CooldownRequest{Seconds: 60})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 1})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// Owner-only: a provider key cannot administrate
	resp := postSigned(t, ts.srv.URL+"/admin/pause", ts.providerKey, &httpserver.PauseRequest{})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/admin/pause", ts.ownerKey, &httpserver.PauseRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.True(t, ts.Ledger.Paused())

	resp = postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 1})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/admin/unpause", ts.ownerKey, &httpserver.PauseRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/admin/batches/close", ts.ownerKey, &httpserver.BatchRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closed := decodeBody[httpserver.BatchIDResponse](t, resp)
	require.Equal(t, uint64(1), closed.BatchID)

	resp = postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/admin/batches/open", ts.ownerKey, &httpserver.BatchRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	opened := decodeBody[httpserver.BatchIDResponse](t, resp)
	require.Equal(t, uint64(2), opened.BatchID)

	// The deposit ack names the batch the operation landed in
	resp = postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ack := decodeBody[httpserver.SubmitResponse](t, resp)
	require.Equal(t, uint64(2), ack.BatchID)

	// Provider management over HTTP
	_, account := testutil.NewAccount(t)
	resp = postSigned(t, ts.srv.URL+"/admin/providers/add", ts.ownerKey, &httpserver.ProviderRequest{Account: string(account)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.True(t, ts.Ledger.IsProvider(account))
}

func TestDisclosureOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := postSigned(t, ts.srv.URL+"/ledger/deposit", ts.providerKey, &httpserver.SubmitRequest{Amount: 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/admin/batches/close", ts.ownerKey, &httpserver.BatchRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postSigned(t, ts.srv.URL+"/ledger/request-summary", ts.providerKey, &httpserver.SummaryRequest{BatchID: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[httpserver.SummaryResponse](t, resp)

	// The oracle posts its signed result to the callback route
	cleartext, proof, err := ts.Oracle.Result(summary.RequestID)
	require.NoError(t, err)
	envelope, err := json.Marshal(&oracle.ResultEnvelope{RequestID: summary.RequestID, Cleartext: cleartext, Proof: proof})
	require.NoError(t, err)

	cb, err := http.Post(ts.srv.URL+"/oracle/result", "application/json", bytes.NewReader(envelope))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, cb.StatusCode)
	totals := decodeBody[ledger.SummaryTotals](t, cb)
	require.Equal(t, uint32(5), totals.TotalDeposited)
	require.Equal(t, uint32(0), totals.TotalWithdrawn)

	// Replay maps to a conflict
	cb, err = http.Post(ts.srv.URL+"/oracle/result", "application/json", bytes.NewReader(envelope))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, cb.StatusCode)
	cb.Body.Close()

	// Unknown request id maps to not found
	unknown, err := json.Marshal(&oracle.ResultEnvelope{RequestID: 99, Cleartext: cleartext, Proof: proof})
	require.NoError(t, err)
	cb, err = http.Post(ts.srv.URL+"/oracle/result", "application/json", bytes.NewReader(unknown))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, cb.StatusCode)
	cb.Body.Close()
}

func TestQueryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/ledger/state")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeBody[httpserver.StateResponse](t, resp)
	require.Equal(t, ts.Owner, state.Owner)
	require.Equal(t, uint64(1), state.CurrentBatchID)
	require.False(t, state.Paused)

	resp, err = http.Get(ts.srv.URL + "/ledger/batch/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	batch := decodeBody[ledger.BatchRecord](t, resp)
	require.Equal(t, uint64(1), batch.ID)
	require.False(t, batch.Closed)

	resp, err = http.Get(ts.srv.URL + "/ledger/batch/99")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.srv.URL + "/ledger/batch/notanumber")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.srv.URL + "/ledger/events?limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decodeBody[[]ledger.Event](t, resp)
	require.NotEmpty(t, *events)

	resp, err = http.Get(ts.srv.URL + "/ledger/events?limit=bogus")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
