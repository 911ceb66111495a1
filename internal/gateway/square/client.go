// Package square integrates the Square API: payment-link checkout and
// HMAC-verified webhooks. Square has no subscription support here and no
// payout API; marketplace orders settle through the platform account.
package square

import (
	"context"
	"encoding/json"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

const (
	liveBaseURL    = "https://connect.squareup.com"
	sandboxBaseURL = "https://connect.squareupsandbox.com"
)

// parseError extracts errors[0].detail from Square's error envelope.
func parseError(_ int, body []byte) string {
	var envelope struct {
		Errors []struct {
			Detail   string `json:"detail"`
			Category string `json:"category"`
			Code     string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Errors) == 0 {
		return ""
	}
	if envelope.Errors[0].Detail != "" {
		return envelope.Errors[0].Detail
	}
	return envelope.Errors[0].Code
}

// Client authenticates requests with the configured access token.
type Client struct {
	rest *gateway.Client
	cfg  config.SquareConfig
}

// NewClient creates a Square API client.
func NewClient(cfg config.SquareConfig, env *gateway.Env) *Client {
	base := liveBaseURL
	if cfg.Sandbox {
		base = sandboxBaseURL
	}
	return &Client{
		rest: gateway.NewClient(base, env.HTTPClient, parseError, env.Logger),
		cfg:  cfg,
	}
}

// Request performs an authenticated API call.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...gateway.RequestOption) (*gateway.Result, error) {
	opts = append(opts, gateway.WithBearer(c.cfg.AccessToken))
	return c.rest.Request(ctx, method, path, body, opts...)
}
