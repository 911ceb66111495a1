// Package paystack integrates the Paystack API: hosted transaction
// checkout, plan subscriptions and HMAC-SHA512 verified webhooks. Vendor
// splitting rides on subaccounts attached to the charge.
package paystack

import (
	"context"
	"encoding/json"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

const baseURL = "https://api.paystack.co"

// parseError extracts the message field from Paystack's error envelope.
func parseError(_ int, body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}

// Client authenticates requests with the configured secret key.
type Client struct {
	rest *gateway.Client
	cfg  config.PaystackConfig
}

// NewClient creates a Paystack API client.
func NewClient(cfg config.PaystackConfig, env *gateway.Env) *Client {
	return &Client{
		rest: gateway.NewClient(baseURL, env.HTTPClient, parseError, env.Logger),
		cfg:  cfg,
	}
}

// Request performs an authenticated API call.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...gateway.RequestOption) (*gateway.Result, error) {
	opts = append(opts, gateway.WithBearer(c.cfg.SecretKey))
	return c.rest.Request(ctx, method, path, body, opts...)
}
