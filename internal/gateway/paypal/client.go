// Package paypal integrates the PayPal REST API: one-time checkout orders,
// billing subscriptions, Payouts-based vendor disbursement and
// cert-verified webhooks.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/transient"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	// Cached tokens are dropped a minute before PayPal's reported expiry.
	tokenSafetyMargin = 60 * time.Second
)

// parseError extracts the message from PayPal's error envelope.
func parseError(_ int, body []byte) string {
	var envelope struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.ErrorDescription
}

// Client wraps the shared REST client with PayPal's client-credentials
// OAuth flow. Access tokens are cached in the transient store keyed by
// mode, refreshed when absent.
type Client struct {
	rest       *gateway.Client
	transients transient.Store
	cfg        config.PayPalConfig
}

// NewClient creates a PayPal API client for the configured mode.
func NewClient(cfg config.PayPalConfig, env *gateway.Env) *Client {
	baseURL := liveBaseURL
	if cfg.Sandbox {
		baseURL = sandboxBaseURL
	}
	return &Client{
		rest:       gateway.NewClient(baseURL, env.HTTPClient, parseError, env.Logger),
		transients: env.Transients,
		cfg:        cfg,
	}
}

func (c *Client) mode() string {
	if c.cfg.Sandbox {
		return "sandbox"
	}
	return "live"
}

// AccessToken returns a valid client-credentials token, from cache when
// possible.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if !c.cfg.Configured() {
		return "", fmt.Errorf("paypal credentials missing: %w", gateway.ErrAuthentication)
	}

	cacheKey := "paypal:access_token:" + c.mode()
	if cached, err := c.transients.Get(ctx, cacheKey); err == nil {
		return string(cached), nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	result, err := c.rest.Request(ctx, http.MethodPost, "/v1/oauth2/token", nil,
		gateway.WithForm(form),
		gateway.WithBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret),
	)
	if err != nil {
		return "", fmt.Errorf("paypal token request failed: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("paypal token request rejected: %s: %w", result.ErrorMessage, gateway.ErrAuthentication)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := result.Decode(&token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("paypal token response missing access_token: %w", gateway.ErrAuthentication)
	}

	ttl := time.Duration(token.ExpiresIn)*time.Second - tokenSafetyMargin
	if ttl > 0 {
		if err := c.transients.Set(ctx, cacheKey, []byte(token.AccessToken), ttl); err != nil {
			// Cache misses just mean an extra token round-trip.
			_ = err //nolint:errcheck
		}
	}

	return token.AccessToken, nil
}

// Request performs an authenticated API call.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...gateway.RequestOption) (*gateway.Result, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, gateway.WithBearer(token))
	return c.rest.Request(ctx, method, path, body, opts...)
}
