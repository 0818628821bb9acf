package identclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/authn"
)

func TestVerify(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity/verify" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"identity":{"credential_id":"cred_123","class":"ISSUER_AGENT","issuer_id":"cred_iss"}}`))
	}))
	defer ts.Close()

	c := New(ts.URL)
	id, err := c.Verify(context.Background(), "tok_abc")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.CredentialID != "cred_123" {
		t.Fatalf("unexpected credential id: %s", id.CredentialID)
	}
	if id.Class != authn.ClassAgent {
		t.Fatalf("unexpected class: %s", id.Class)
	}
	if id.IssuerID != "cred_iss" {
		t.Fatalf("unexpected issuer id: %s", id.IssuerID)
	}
}

func TestVerifyUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Verify(context.Background(), "tok_revoked")
	if apperr.CodeOf(err) != apperr.Unauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}
