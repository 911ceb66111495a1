// Package mercadopago integrates the Mercado Pago API: preference-based
// checkout, preapproval subscriptions and HMAC-verified webhooks. Vendor
// splitting happens at checkout time through marketplace_fee; there is no
// separate payout call.
package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

const baseURL = "https://api.mercadopago.com"

// parseError extracts cause[0].description from Mercado Pago's error
// envelope, falling back to the top-level message.
func parseError(_ int, body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Cause   []struct {
			Description string `json:"description"`
		} `json:"cause"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Cause) > 0 && envelope.Cause[0].Description != "" {
		return envelope.Cause[0].Description
	}
	return envelope.Message
}

// Client authenticates requests with the configured access token.
type Client struct {
	rest *gateway.Client
	cfg  config.MercadoPagoConfig
}

// NewClient creates a Mercado Pago API client.
func NewClient(cfg config.MercadoPagoConfig, env *gateway.Env) *Client {
	return &Client{
		rest: gateway.NewClient(baseURL, env.HTTPClient, parseError, env.Logger),
		cfg:  cfg,
	}
}

// Request performs an authenticated API call.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...gateway.RequestOption) (*gateway.Result, error) {
	opts = append(opts, gateway.WithBearer(c.cfg.AccessToken))
	return c.rest.Request(ctx, method, path, body, opts...)
}

// RequestForm performs an unauthenticated form-encoded POST (OAuth token
// endpoint).
func (c *Client) RequestForm(ctx context.Context, path string, form url.Values) (*gateway.Result, error) {
	return c.rest.Request(ctx, http.MethodPost, path, nil, gateway.WithForm(form))
}
