package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoterHund/securities-manager/pkg/authn"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine/memstate"
)

// fakeVerifier maps raw tokens straight to identities.
type fakeVerifier map[string]*authn.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (*authn.Identity, error) {
	id, ok := f[token]
	if !ok {
		return nil, authn.ErrUnauthorized
	}
	return id, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := engine.New(memstate.New(), engine.DefaultPolicy(), engine.NewAuthority(), nil)
	v := fakeVerifier{
		"issuer-token":   {CredentialID: "cred_issuer_1", Class: authn.ClassIssuer, IssuerID: "cred_issuer_1"},
		"agent-token":    {CredentialID: "cred_agent_1", Class: authn.ClassAgent, IssuerID: "cred_issuer_1"},
		"investor-token": {CredentialID: "cred_investor_1", Class: authn.ClassInvestor},
	}
	ts := httptest.NewServer(newRouter(eng, v, nil))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("content-type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestFullIssuanceFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	status, out := doJSON(t, "POST", ts.URL+"/securities/instruments", "issuer-token", map[string]any{
		"security_type": "Bond",
		"security_form": "Registered",
		"name":          "Sovereign Bond 2030",
		"symbol":        "SB30",
	})
	require.Equal(t, http.StatusCreated, status)
	ins := out["instrument"].(map[string]any)
	insID := ins["instrument_id"].(string)
	assert.Equal(t, "verified", ins["status"])
	assert.Equal(t, "open", ins["subscription_status"])

	status, out = doJSON(t, "POST", ts.URL+"/securities/subscriptions", "investor-token", map[string]any{
		"instrument_id": insID,
		"quantity":      "1000",
	})
	require.Equal(t, http.StatusCreated, status)
	escrow := out["escrow"].(map[string]any)
	escrowID := escrow["escrow_id"].(string)
	assert.Equal(t, "1000.00", escrow["payment_due"])

	status, out = doJSON(t, "POST", ts.URL+"/securities/subscriptions/"+escrowID+"/payment", "investor-token", map[string]any{
		"currency": "USD",
		"amount":   "1200.00",
	})
	require.Equal(t, http.StatusOK, status)
	remainder := out["remainder"].(map[string]any)
	assert.Equal(t, "200.00", remainder["amount"])

	status, out = doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/events", "agent-token", map[string]any{
		"action_type": "Issuance",
		"percent":     "0",
	})
	require.Equal(t, http.StatusCreated, status)
	event := out["event"].(map[string]any)
	assert.EqualValues(t, 1, event["seq"])

	status, _ = doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/subscription/close", "issuer-token", nil)
	require.Equal(t, http.StatusOK, status)

	status, out = doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/vintages/issue", "agent-token", nil)
	require.Equal(t, http.StatusOK, status)
	issued := out["issued"].([]any)
	require.Len(t, issued, 1)

	status, out = doJSON(t, "POST", ts.URL+"/securities/subscriptions/"+escrowID+"/claim", "investor-token", nil)
	require.Equal(t, http.StatusOK, status)
	sec := out["securities"].(map[string]any)
	assert.Equal(t, "1000", sec["amount"])
	assert.EqualValues(t, 1, sec["seq"])

	status, out = doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/claim-cash", "issuer-token", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, out["swept"])
	proceeds := out["proceeds"].(map[string]any)
	assert.Equal(t, "1000.00", proceeds["amount"])
}

func TestCorporateActionFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	_, out := doJSON(t, "POST", ts.URL+"/securities/instruments", "issuer-token", map[string]any{
		"security_type": "Bond", "security_form": "Registered", "name": "Note", "symbol": "NT",
	})
	insID := out["instrument"].(map[string]any)["instrument_id"].(string)

	_, out = doJSON(t, "POST", ts.URL+"/securities/subscriptions", "investor-token", map[string]any{
		"instrument_id": insID, "quantity": "1000",
	})
	escrowID := out["escrow"].(map[string]any)["escrow_id"].(string)
	doJSON(t, "POST", ts.URL+"/securities/subscriptions/"+escrowID+"/payment", "investor-token", map[string]any{
		"currency": "USD", "amount": "1000.00",
	})
	doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/events", "agent-token", map[string]any{
		"action_type": "Issuance", "percent": "0",
	})
	doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/events", "agent-token", map[string]any{
		"action_type": "Coupon", "percent": "5",
	})
	doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/subscription/close", "issuer-token", nil)
	doJSON(t, "POST", ts.URL+"/securities/instruments/"+insID+"/vintages/issue", "agent-token", nil)
	doJSON(t, "POST", ts.URL+"/securities/subscriptions/"+escrowID+"/claim", "investor-token", nil)

	status, out := doJSON(t, "POST", ts.URL+"/securities/holdings/claim", "investor-token", map[string]any{
		"instrument_id": insID, "seq": 1, "amount": "1000",
	})
	require.Equal(t, http.StatusOK, status)
	payout := out["payout"].(map[string]any)
	assert.Equal(t, "50", payout["amount"])
	rolled := out["securities"].(map[string]any)
	assert.EqualValues(t, 2, rolled["seq"])
	assert.Equal(t, "1000", rolled["amount"])
}

func TestAuthRejection(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{"security_type": "Bond", "security_form": "Registered", "name": "X", "symbol": "X"}

	status, _ := doJSON(t, "POST", ts.URL+"/securities/instruments", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, "POST", ts.URL+"/securities/instruments", "bogus-token", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Wrong class: investors cannot register instruments.
	status, _ = doJSON(t, "POST", ts.URL+"/securities/instruments", "investor-token", body)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	_, out := doJSON(t, "POST", ts.URL+"/securities/instruments", "issuer-token", map[string]any{
		"security_type": "Bond", "security_form": "Registered", "name": "X", "symbol": "X",
	})
	insID := out["instrument"].(map[string]any)["instrument_id"].(string)

	doJSON(t, "POST", ts.URL+"/securities/subscriptions", "investor-token", map[string]any{
		"instrument_id": insID, "quantity": "500000",
	})
	status, out := doJSON(t, "POST", ts.URL+"/securities/subscriptions", "investor-token", map[string]any{
		"instrument_id": insID, "quantity": "600000",
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	errObj := out["error"].(map[string]any)
	assert.Equal(t, "CAPACITY_EXCEEDED", errObj["code"])
	require.NotEmpty(t, out["request_id"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "1000000", details["cap"])
}

func TestGetInstrumentNotFound(t *testing.T) {
	ts := newTestServer(t)

	status, out := doJSON(t, "GET", ts.URL+"/securities/instruments/ins_missing", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", out["error"].(map[string]any)["code"])
}
