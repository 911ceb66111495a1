package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

const authorizationURL = "https://auth.mercadopago.com/authorization"

// Connect onboards vendors through Mercado Pago's OAuth marketplace flow.
// Connected vendors receive split payments at charge time, so no payout
// dispatch exists.
type Connect struct {
	client *Client
	env    *gateway.Env
	cfg    config.MercadoPagoConfig
}

// NewConnect creates the Mercado Pago vendor connection handler.
func NewConnect(client *Client, cfg config.MercadoPagoConfig, env *gateway.Env) *Connect {
	return &Connect{client: client, cfg: cfg, env: env}
}

// Connected reports whether the vendor holds a usable access token.
func (c *Connect) Connected(conn *models.VendorConnection) bool {
	return conn != nil && conn.AccessToken != ""
}

// OnboardingURL builds the authorization URL the vendor is sent to.
func (c *Connect) OnboardingURL(state string) (string, error) {
	if c.cfg.ClientID == "" {
		return "", fmt.Errorf("mercadopago oauth is not configured: %w", gateway.ErrAuthentication)
	}

	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("response_type", "code")
	params.Set("platform_id", "mp")
	params.Set("state", state)
	params.Set("redirect_uri", c.redirectURI())
	return authorizationURL + "?" + params.Encode(), nil
}

// ExchangeCode trades the authorization code for vendor credentials.
func (c *Connect) ExchangeCode(ctx context.Context, code string) (*models.VendorConnection, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI())

	return c.requestToken(ctx, form)
}

// RefreshToken renews the vendor's access token using the stored refresh
// token.
func (c *Connect) RefreshToken(ctx context.Context, conn *models.VendorConnection) (*models.VendorConnection, error) {
	if conn.RefreshToken == "" {
		return nil, fmt.Errorf("vendor %d has no refresh token: %w", conn.VendorID, gateway.ErrAuthentication)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", conn.RefreshToken)

	refreshed, err := c.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	refreshed.VendorID = conn.VendorID
	refreshed.Provider = conn.Provider
	return refreshed, nil
}

func (c *Connect) requestToken(ctx context.Context, form url.Values) (*models.VendorConnection, error) {
	result, err := c.client.RequestForm(ctx, "/oauth/token", form)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago token exchange failed: %s: %w", result.ErrorMessage, gateway.ErrAuthentication)
	}

	var token struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		ExpiresIn    int64       `json:"expires_in"`
		UserID       json.Number `json:"user_id"`
	}
	if err := result.Decode(&token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("mercadopago token response without access_token: %w", gateway.ErrAuthentication)
	}

	conn := &models.VendorConnection{
		Provider:     gateway.KeyMercadoPago,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		MerchantID:   token.UserID.String(),
	}
	if token.ExpiresIn > 0 {
		expires := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		conn.ExpiresAt = &expires
	}
	return conn, nil
}

func (c *Connect) redirectURI() string {
	return c.env.BaseURL + "/vendors/connect/" + gateway.KeyMercadoPago + "/callback"
}

// CreateSubaccount is not part of the Mercado Pago model.
func (c *Connect) CreateSubaccount(context.Context, gateway.SubaccountDetails) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// DispatchPayout is unsupported: splits are settled at charge time.
func (c *Connect) DispatchPayout(context.Context, *models.Order, *models.VendorConnection, models.FeeSplit) (string, error) {
	return "", gateway.ErrUnsupported
}
