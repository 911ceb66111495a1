package square

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

// Connect onboards vendors through Square's OAuth flow. Square has no
// payout API, so marketplace earnings for Square orders settle outside the
// engine; the connection is kept for seller identity.
type Connect struct {
	client *Client
	env    *gateway.Env
	cfg    config.SquareConfig
}

// NewConnect creates the Square vendor connection handler.
func NewConnect(client *Client, cfg config.SquareConfig, env *gateway.Env) *Connect {
	return &Connect{client: client, cfg: cfg, env: env}
}

// Connected reports whether the vendor holds a usable access token.
func (c *Connect) Connected(conn *models.VendorConnection) bool {
	return conn != nil && conn.AccessToken != ""
}

// OnboardingURL builds the authorization URL the vendor is sent to.
func (c *Connect) OnboardingURL(state string) (string, error) {
	if c.cfg.ApplicationID == "" {
		return "", fmt.Errorf("square oauth is not configured: %w", gateway.ErrAuthentication)
	}

	base := liveBaseURL
	if c.cfg.Sandbox {
		base = sandboxBaseURL
	}

	params := url.Values{}
	params.Set("client_id", c.cfg.ApplicationID)
	params.Set("scope", "MERCHANT_PROFILE_READ PAYMENTS_READ")
	params.Set("session", "false")
	params.Set("state", state)
	return base + "/oauth2/authorize?" + params.Encode(), nil
}

// ExchangeCode trades the authorization code for vendor credentials.
func (c *Connect) ExchangeCode(ctx context.Context, code string) (*models.VendorConnection, error) {
	return c.requestToken(ctx, map[string]any{
		"client_id":     c.cfg.ApplicationID,
		"client_secret": c.cfg.ApplicationSecret,
		"grant_type":    "authorization_code",
		"code":          code,
	})
}

// RefreshToken renews the vendor's access token.
func (c *Connect) RefreshToken(ctx context.Context, conn *models.VendorConnection) (*models.VendorConnection, error) {
	if conn.RefreshToken == "" {
		return nil, fmt.Errorf("vendor %d has no refresh token: %w", conn.VendorID, gateway.ErrAuthentication)
	}

	refreshed, err := c.requestToken(ctx, map[string]any{
		"client_id":     c.cfg.ApplicationID,
		"client_secret": c.cfg.ApplicationSecret,
		"grant_type":    "refresh_token",
		"refresh_token": conn.RefreshToken,
	})
	if err != nil {
		return nil, err
	}
	refreshed.VendorID = conn.VendorID
	refreshed.Provider = conn.Provider
	return refreshed, nil
}

func (c *Connect) requestToken(ctx context.Context, body map[string]any) (*models.VendorConnection, error) {
	result, err := c.client.rest.Request(ctx, http.MethodPost, "/oauth2/token", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("square token exchange failed: %s: %w", result.ErrorMessage, gateway.ErrAuthentication)
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		MerchantID   string `json:"merchant_id"`
		ExpiresAt    string `json:"expires_at"`
	}
	if err := result.Decode(&token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("square token response without access_token: %w", gateway.ErrAuthentication)
	}

	conn := &models.VendorConnection{
		Provider:     gateway.KeySquare,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		MerchantID:   token.MerchantID,
	}
	if token.ExpiresAt != "" {
		if expires, err := time.Parse(time.RFC3339, token.ExpiresAt); err == nil {
			conn.ExpiresAt = &expires
		}
	}
	return conn, nil
}

// CreateSubaccount is not part of the Square model.
func (c *Connect) CreateSubaccount(context.Context, gateway.SubaccountDetails) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// DispatchPayout is unsupported: Square exposes no payout API.
func (c *Connect) DispatchPayout(context.Context, *models.Order, *models.VendorConnection, models.FeeSplit) (string, error) {
	return "", gateway.ErrUnsupported
}
