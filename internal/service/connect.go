package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/transient"
)

// connectStateTTL bounds how long an OAuth consent round-trip may take.
const connectStateTTL = 15 * time.Minute

func connectStateKey(state string) string {
	return "vendor:connect:" + state
}

// connectState is the CSRF token payload held while the vendor is at the
// provider's consent screen.
type connectState struct {
	VendorID int64  `json:"vendor_id"`
	Provider string `json:"provider"`
}

// ConnectService runs vendor onboarding: OAuth consent URLs and callbacks
// for PayPal-style providers, direct detail submission for the rest.
type ConnectService struct {
	registry    *gateway.Registry
	marketplace *MarketplaceService
	transients  transient.Store
	logger      *slog.Logger
}

// NewConnectService creates a new ConnectService
func NewConnectService(registry *gateway.Registry, marketplace *MarketplaceService, transients transient.Store, logger *slog.Logger) *ConnectService {
	return &ConnectService{
		registry:    registry,
		marketplace: marketplace,
		transients:  transients,
		logger:      logger,
	}
}

// OnboardingURL stores a CSRF state and returns the provider consent URL
// the vendor is sent to.
func (s *ConnectService) OnboardingURL(ctx context.Context, vendorID int64, provider string) (string, error) {
	p, ok := s.registry.Get(provider)
	if !ok {
		return "", &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + provider,
		}
	}

	state := uuid.NewString()
	encoded, err := json.Marshal(connectState{VendorID: vendorID, Provider: provider})
	if err != nil {
		return "", internalError("failed to encode connect state: %v", err)
	}
	if err := s.transients.Set(ctx, connectStateKey(state), encoded, connectStateTTL); err != nil {
		return "", internalError("failed to store connect state: %v", err)
	}

	url, err := p.Connect().OnboardingURL(state)
	if errors.Is(err, gateway.ErrUnsupported) {
		return "", &ServiceError{
			Code:    ErrCodeUnsupported,
			Message: provider + " vendors connect by submitting their details directly",
		}
	}
	if err != nil {
		return "", &ServiceError{
			Code:    ErrCodeProviderAPI,
			Message: "failed to build onboarding url",
			Err:     err,
		}
	}
	return url, nil
}

// HandleCallback validates the CSRF state, exchanges the authorization code
// and stores the vendor connection.
func (s *ConnectService) HandleCallback(ctx context.Context, state, code string) (*models.VendorConnection, error) {
	raw, err := s.transients.Get(ctx, connectStateKey(state))
	if errors.Is(err, transient.ErrNotFound) {
		return nil, &ServiceError{
			Code:    ErrCodeValidation,
			Message: "unknown or expired connect state",
		}
	}
	if err != nil {
		return nil, internalError("failed to load connect state: %v", err)
	}
	_ = s.transients.Delete(ctx, connectStateKey(state)) //nolint:errcheck // state is single-use, expiry cleans up

	var st connectState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, internalError("corrupt connect state: %v", err)
	}

	p, ok := s.registry.Get(st.Provider)
	if !ok {
		return nil, &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + st.Provider,
		}
	}

	conn, err := p.Connect().ExchangeCode(ctx, code)
	if err != nil {
		return nil, &ServiceError{
			Code:    ErrCodeAuthentication,
			Message: "authorization code exchange failed",
			Err:     err,
		}
	}
	conn.VendorID = st.VendorID

	if err := s.marketplace.SaveConnection(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("vendor connected",
		slog.Int64("vendor_id", st.VendorID),
		slog.String("provider", st.Provider),
		slog.String("merchant_id", conn.MerchantID))
	return conn, nil
}

// SubmitDetails onboards a vendor without OAuth: a Paystack subaccount from
// bank details, or a plain PayPal payout email.
func (s *ConnectService) SubmitDetails(ctx context.Context, vendorID int64, provider string, details gateway.SubaccountDetails, payoutEmail string) (*models.VendorConnection, error) {
	p, ok := s.registry.Get(provider)
	if !ok {
		return nil, &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + provider,
		}
	}

	var conn *models.VendorConnection
	switch provider {
	case gateway.KeyPayPal:
		if payoutEmail == "" {
			return nil, &ServiceError{
				Code:    ErrCodeValidation,
				Message: "payout email is required",
			}
		}
		conn = &models.VendorConnection{
			Provider:    provider,
			PayoutEmail: payoutEmail,
		}
	default:
		created, err := p.Connect().CreateSubaccount(ctx, details)
		if errors.Is(err, gateway.ErrUnsupported) {
			return nil, &ServiceError{
				Code:    ErrCodeUnsupported,
				Message: provider + " vendors connect through the onboarding url",
			}
		}
		if err != nil {
			return nil, &ServiceError{
				Code:    ErrCodeProviderAPI,
				Message: "subaccount creation failed",
				Err:     err,
			}
		}
		conn = created
	}
	conn.VendorID = vendorID

	if err := s.marketplace.SaveConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Disconnect removes a vendor's connection for one provider.
func (s *ConnectService) Disconnect(ctx context.Context, vendorID int64, provider string) error {
	if _, ok := s.registry.Get(provider); !ok {
		return &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + provider,
		}
	}
	return s.marketplace.Disconnect(ctx, vendorID, provider)
}

// Status reports whether a vendor is connected for each registered provider.
func (s *ConnectService) Status(ctx context.Context, vendorID int64) (map[string]bool, error) {
	out := make(map[string]bool, len(s.registry.Keys()))
	for _, key := range s.registry.Keys() {
		p, _ := s.registry.Get(key)
		conn, err := s.marketplace.Connection(ctx, vendorID, key)
		if errors.Is(err, models.ErrNotFound) {
			out[key] = false
			continue
		}
		if err != nil {
			return nil, internalError("failed to load connection for vendor %d: %v", vendorID, err)
		}
		out[key] = p.Connect().Connected(conn)
	}
	return out, nil
}
