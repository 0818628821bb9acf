// Package identclient is the securities service's client for the identity
// service's credential verification endpoint.
package identclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/authn"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify resolves a bearer token to the identity it was minted for. Unknown
// and revoked tokens come back as apperr.Unauthorized.
func (c *Client) Verify(ctx context.Context, token string) (*authn.Identity, error) {
	reqBody, _ := json.Marshal(map[string]any{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/identity/verify", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, authn.ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		return nil, apperr.Newf(apperr.Internal, "identity service returned %d", resp.StatusCode)
	}
	var out struct {
		Identity authn.Identity `json:"identity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &out.Identity, nil
}
