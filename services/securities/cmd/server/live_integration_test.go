package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"
)

// Full issuance lifecycle against running identity and securities services.
func TestIssuanceLifecycleLive(t *testing.T) {
	if os.Getenv("SM_INTEGRATION") != "1" {
		t.Skip("set SM_INTEGRATION=1 to run live integration")
	}

	baseURL := getenvOr("SM_BASE_URL", "http://localhost:8082")
	identityURL := getenvOr("SM_IDENTITY_BASE_URL", "http://localhost:8081")

	issuerResp := postJSONLive(t, identityURL+"/identity/issuers", "", map[string]any{
		"name":        "Integration Issuer",
		"company_lei": "LEI123INTEGRATION",
	})
	issuerToken := nestedString(t, issuerResp, "credentials", "token")

	agentResp := postJSONLive(t, identityURL+"/identity/agents", issuerToken, map[string]any{})
	agentToken := nestedString(t, agentResp, "credentials", "token")

	investorResp := postJSONLive(t, identityURL+"/identity/investors/kyc", "", map[string]any{
		"country":       "GB",
		"favourite_int": 7,
	})
	investorToken := nestedString(t, investorResp, "credentials", "token")

	insResp := postJSONLive(t, baseURL+"/securities/instruments", issuerToken, map[string]any{
		"security_type": "Bond",
		"security_form": "Registered",
		"name":          "Integration Bond",
		"symbol":        "INTB",
	})
	insID := nestedString(t, insResp, "instrument", "instrument_id")

	subResp := postJSONLive(t, baseURL+"/securities/subscriptions", investorToken, map[string]any{
		"instrument_id": insID,
		"quantity":      "1000",
	})
	escrowID := nestedString(t, subResp, "escrow", "escrow_id")
	if due := nestedString(t, subResp, "escrow", "payment_due"); due != "1000.00" {
		t.Fatalf("unexpected payment due: %s", due)
	}

	postJSONLive(t, baseURL+"/securities/subscriptions/"+escrowID+"/payment", investorToken, map[string]any{
		"currency": "USD",
		"amount":   "1000.00",
	})
	postJSONLive(t, baseURL+"/securities/instruments/"+insID+"/events", agentToken, map[string]any{
		"action_type": "Issuance",
		"percent":     "0",
	})
	postJSONLive(t, baseURL+"/securities/instruments/"+insID+"/subscription/close", issuerToken, nil)
	postJSONLive(t, baseURL+"/securities/instruments/"+insID+"/vintages/issue", agentToken, nil)

	claimResp := postJSONLive(t, baseURL+"/securities/subscriptions/"+escrowID+"/claim", investorToken, nil)
	if amt := nestedString(t, claimResp, "securities", "amount"); amt != "1000" {
		t.Fatalf("unexpected claimed amount: %s", amt)
	}

	sweepResp := postJSONLive(t, baseURL+"/securities/instruments/"+insID+"/claim-cash", issuerToken, map[string]any{})
	if amt := nestedString(t, sweepResp, "proceeds", "amount"); amt != "1000.00" {
		t.Fatalf("unexpected proceeds: %s", amt)
	}
}

func getenvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func postJSONLive(t *testing.T, url, token string, body any) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("content-type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	if resp.StatusCode >= 300 {
		t.Fatalf("POST %s returned %d: %v", url, resp.StatusCode, out)
	}
	return out
}

func nestedString(t *testing.T, m map[string]any, keys ...string) string {
	t.Helper()
	cur := any(m)
	for i, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("expected object at %v", keys[:i])
		}
		cur = obj[k]
	}
	s, ok := cur.(string)
	if !ok {
		t.Fatalf("expected string at %v, got %T", keys, cur)
	}
	return s
}
