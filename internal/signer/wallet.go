package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWalletTimeout = 60 * time.Second

// WalletClient asks a wallet session service to sign and broadcast a claim.
// The service fronts the player's connected wallet; a signing prompt may sit
// in front of a human, so the default timeout is generous.
type WalletClient struct {
	baseURL    string
	httpClient *http.Client
}

// WalletOption configures a WalletClient.
type WalletOption func(*WalletClient)

// WithWalletTimeout overrides the per-request timeout.
func WithWalletTimeout(d time.Duration) WalletOption {
	return func(c *WalletClient) {
		c.httpClient.Timeout = d
	}
}

// WithWalletHTTPClient replaces the underlying HTTP client.
func WithWalletHTTPClient(hc *http.Client) WalletOption {
	return func(c *WalletClient) {
		c.httpClient = hc
	}
}

// NewWalletClient builds a client for the wallet session service at baseURL.
func NewWalletClient(baseURL string, opts ...WalletOption) *WalletClient {
	c := &WalletClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultWalletTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Signer = (*WalletClient)(nil)

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// SignAndSendClaim posts the claim to the wallet session service and returns
// the broadcast signature. A declined prompt and an expired session map to
// ErrUserDeclined and ErrSessionExpired respectively.
func (c *WalletClient) SignAndSendClaim(ctx context.Context, req ClaimRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal claim request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/claims/sign-and-send", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("wallet service request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ErrSessionExpired
	case http.StatusConflict:
		return "", ErrUserDeclined
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("wallet service status %d: %s", resp.StatusCode, data)
	}

	var sr signResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode wallet response: %w", err)
	}
	if sr.Signature == "" {
		return "", fmt.Errorf("wallet service returned empty signature")
	}
	return sr.Signature, nil
}
