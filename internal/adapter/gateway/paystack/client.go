// Package paystack starts hosted checkouts on the Paystack API.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"custodial-wallet/config"
	"custodial-wallet/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// StubCheckoutBase is the checkout URL prefix returned in stub mode.
const StubCheckoutBase = "https://paystack.test/checkout/"

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 1 << 20

var errNotConfigured = errors.New("paystack secret key is not configured")

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentGateway.
type Client struct {
	secretKey  string
	baseURL    string
	allowStub  bool
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a Paystack client. A nil httpClient gets an
// *http.Client with the configured timeout.
func NewClient(cfg config.GatewayConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		allowStub:  cfg.AllowStub,
		httpClient: httpClient,
		log:        log,
	}
}

type initializeRequest struct {
	Amount    int64  `json:"amount"`
	Email     string `json:"email"`
	Reference string `json:"reference"`
}

// Initialize asks Paystack for a checkout URL. Amounts are already in the
// currency's minor unit, which is what Paystack expects.
func (c *Client) Initialize(ctx context.Context, req ports.GatewayInitRequest) (*ports.GatewayInitResult, error) {
	if c.allowStub {
		c.log.Debug().Str("reference", req.Reference).Msg("paystack: stub checkout issued")
		return &ports.GatewayInitResult{AuthorizationURL: StubCheckoutBase + req.Reference}, nil
	}
	if c.secretKey == "" {
		return nil, errNotConfigured
	}

	body, err := json.Marshal(initializeRequest{Amount: req.Amount, Email: req.Email, Reference: req.Reference})
	if err != nil {
		return nil, fmt.Errorf("marshal initialize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initialize request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read initialize response: %w", err)
	}

	parsed := gjson.ParseBytes(raw)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Get("message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.log.Warn().Int("status", resp.StatusCode).Str("reference", req.Reference).Msg("paystack: initialize rejected")
		return nil, fmt.Errorf("paystack initialize: %d %s", resp.StatusCode, msg)
	}

	authURL := parsed.Get("data.authorization_url").String()
	if authURL == "" {
		return nil, errors.New("paystack initialize: unexpected response without authorization_url")
	}

	return &ports.GatewayInitResult{
		AuthorizationURL: authURL,
		AccessCode:       parsed.Get("data.access_code").String(),
	}, nil
}
