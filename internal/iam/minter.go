// Package iam mints service-account assertions and exchanges them for bearer tokens.
package iam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
)

// DefaultExchangeURL is the identity endpoint used when none is configured.
const DefaultExchangeURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

type exchangeRequest struct {
	JWT string `json:"jwt"`
}

type exchangeResponse struct {
	IAMToken  string `json:"iamToken"`
	ExpiresAt string `json:"expiresAt"`
}

// Minter holds no state between calls; each MintAndExchange signs a fresh
// assertion and performs exactly one POST.
type Minter struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Minter)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Minter) { m.httpClient = c }
}

// WithTimeout bounds each exchange call. Zero leaves it to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(m *Minter) { m.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Minter) { m.now = now }
}

func NewMinter(opts ...Option) *Minter {
	m := &Minter{
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mint returns a signed assertion for the given service account.
func (m *Minter) Mint(serviceAccountID, privateKey, keyID, exchangeURL string) (string, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return SignAssertion(NewClaims(serviceAccountID, exchangeURL, m.now()), keyID, key)
}

func (m *Minter) MintAndExchange(ctx context.Context, serviceAccountID, privateKey, keyID, exchangeURL string) (string, error) {
	if exchangeURL == "" {
		exchangeURL = DefaultExchangeURL
	}
	assertion, err := m.Mint(serviceAccountID, privateKey, keyID, exchangeURL)
	if err != nil {
		return "", err
	}
	return m.Exchange(ctx, assertion, exchangeURL)
}

// Exchange trades a signed assertion for a bearer token.
func (m *Minter) Exchange(ctx context.Context, assertion, exchangeURL string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	body, err := json.Marshal(exchangeRequest{JWT: assertion})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, exchangeURL, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("iam token exchange: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("iam token exchange: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apierr.AuthError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var exResp exchangeResponse
	if err := json.Unmarshal(respBody, &exResp); err != nil {
		return "", fmt.Errorf("iam token exchange: decode response: %w", err)
	}
	if exResp.IAMToken == "" {
		return "", &apierr.AuthError{StatusCode: resp.StatusCode, Body: string(respBody), Err: apierr.ErrNoIAMToken}
	}

	return exResp.IAMToken, nil
}
