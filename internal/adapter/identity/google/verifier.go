// Package google verifies Google ID tokens through the tokeninfo endpoint.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"custodial-wallet/config"
	"custodial-wallet/internal/core/ports"

	"github.com/tidwall/gjson"
)

const defaultTimeout = 10 * time.Second

var (
	errEmptyToken       = errors.New("empty id token")
	errAudienceMismatch = errors.New("token audience does not match client id")
	errMissingEmail     = errors.New("token carries no email")
	errEmailUnverified  = errors.New("token email is not verified")
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Verifier implements ports.IdentityVerifier.
type Verifier struct {
	clientID     string
	tokenInfoURL string
	httpClient   HTTPClient
}

// NewVerifier creates a verifier for the configured client id.
func NewVerifier(cfg config.IdentityConfig, httpClient HTTPClient) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Verifier{
		clientID:     cfg.GoogleClientID,
		tokenInfoURL: cfg.TokenInfoURL,
		httpClient:   httpClient,
	}
}

// Verify asks Google to validate idToken and checks that it was minted for
// this client.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*ports.VerifiedIdentity, error) {
	if idToken == "" {
		return nil, errEmptyToken
	}

	endpoint := v.tokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tokeninfo request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read tokeninfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo rejected token: %d %s", resp.StatusCode, gjson.GetBytes(body, "error_description").String())
	}

	claims := gjson.ParseBytes(body)
	if v.clientID != "" && claims.Get("aud").String() != v.clientID {
		return nil, errAudienceMismatch
	}
	email := claims.Get("email").String()
	if email == "" {
		return nil, errMissingEmail
	}
	// tokeninfo reports email_verified as the string "true".
	if ev := claims.Get("email_verified"); ev.Exists() && !ev.Bool() {
		return nil, errEmailUnverified
	}

	name := claims.Get("name").String()
	if name == "" {
		name = email
	}

	return &ports.VerifiedIdentity{
		Email:   email,
		Name:    name,
		Subject: claims.Get("sub").String(),
	}, nil
}
