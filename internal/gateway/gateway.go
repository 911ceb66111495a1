// Package gateway defines the provider-agnostic contract every payment
// provider integration implements, plus the shared REST client and the
// provider registry. Provider-specific behavior lives in the subpackages
// (paypal, mercadopago, paystack, square, offline); everything that drives
// them — checkout, webhook reconciliation, payouts — goes through the
// interfaces declared here.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/transient"
)

// ErrUnsupported is returned by operations a provider does not implement,
// e.g. payout dispatch for providers that split at charge time.
var ErrUnsupported = errors.New("gateway: operation not supported")

// ErrSignatureInvalid is returned by webhook verification failures. Webhook
// controllers translate it into a 4xx so the provider retries delivery.
var ErrSignatureInvalid = errors.New("gateway: webhook signature invalid")

// ErrAuthentication indicates missing or rejected provider credentials.
// Never retried; surfaced to the operator rather than the customer.
var ErrAuthentication = errors.New("gateway: authentication failed")

// Checkout is the outcome of building a provider-hosted checkout: the URL
// the customer is redirected to. All provider state needed to reconcile the
// asynchronous return has already been written into the order's details.
type Checkout struct {
	RedirectURL string
}

// PaymentMethod drives the one-time payment lifecycle for one provider.
//
// Checkout and the provider calls (Fetch, Capture, Refund) talk to the
// provider; Apply is a pure, idempotent projection of a provider payload
// onto the order — calling it twice with the same payload yields the same
// order state. None of these persist the order; the orchestrating service
// owns saving so it can wrap mutation in a locked transaction.
type PaymentMethod interface {
	// Checkout builds the provider checkout for the order, embedding the
	// order correlation id in the provider's pass-through field and writing
	// the provider session/transaction reference into order.Details. A
	// non-nil split embeds marketplace splitting for providers that split
	// at charge time.
	Checkout(ctx context.Context, order *models.Order, split *models.FeeSplit) (*Checkout, error)
	// Fetch retrieves the full current payment payload from the provider.
	Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error)
	// Apply maps a provider payment payload onto the order: stores the raw
	// payload, records the transaction id exactly once, maps the provider
	// status vocabulary to an order status and stamps last_synced_at.
	Apply(order *models.Order, payload json.RawMessage) error
	// Capture completes a manually-captured (authorized) payment.
	Capture(ctx context.Context, order *models.Order) (json.RawMessage, error)
	// Refund refunds the payment. Used by the vendor decline action.
	Refund(ctx context.Context, order *models.Order) (json.RawMessage, error)
	// ShouldSync reports whether the order has provider state worth
	// re-fetching (a stored payment reference in a non-terminal status).
	ShouldSync(order *models.Order) bool
}

// SubscriptionMethod drives the recurring-billing lifecycle for providers
// that support it. Same persistence rules as PaymentMethod.
type SubscriptionMethod interface {
	Checkout(ctx context.Context, order *models.Order) (*Checkout, error)
	Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error)
	// Apply maps a provider subscription payload onto the order
	// (sub_active, sub_paused, sub_canceled).
	Apply(order *models.Order, payload json.RawMessage) error
	Cancel(ctx context.Context, order *models.Order) (json.RawMessage, error)
}

// EventKind classifies a webhook event for the reconciliation flow.
type EventKind int

const (
	// EventIgnored is a benign event the engine does not act on; the
	// controller still answers 200 so the provider stops retrying.
	EventIgnored EventKind = iota
	// EventPayment updates a one-time payment.
	EventPayment
	// EventSubscription updates a subscription.
	EventSubscription
)

// Event is a provider webhook notification reduced to what the
// reconciliation flow needs: how to find the order and how to get the full
// resource payload.
type Event struct {
	Kind EventKind
	// Type is the provider's own event discriminator, kept for logging.
	Type string
	// ResourceID is the provider resource the event refers to (payment id,
	// preference id, subscription code).
	ResourceID string
	// OrderID is set when the provider carried the order id directly in a
	// pass-through field. Zero when the order must be found by detail.
	OrderID int64
	// LookupPath/LookupValue locate the order through a stored correlation
	// key (details path) when OrderID is zero.
	LookupPath  string
	LookupValue string
	// Payload is the full resource payload when the webhook carried it
	// inline. Nil when the resource must be resolved first.
	Payload json.RawMessage
}

// Webhook verifies and parses provider webhook deliveries.
type Webhook interface {
	// Verify checks the delivery signature over the exact raw body bytes,
	// before any parsing-dependent logic runs. Returns ErrSignatureInvalid
	// (possibly wrapped) on failure. Providers with no secret configured
	// skip verification by convention. The request carries the signature
	// headers and, for some providers, query correlation parameters; the
	// body must be the exact bytes read from it.
	Verify(ctx context.Context, r *http.Request, body []byte) error
	// Parse classifies the event envelope. A non-JSON body is an error;
	// unknown event types come back as EventIgnored.
	Parse(body []byte) (*Event, error)
	// Resolve completes an event whose webhook only carried a resource id:
	// fetches the full payload from the provider and fills in the order
	// correlation. Events parsed with an inline payload pass through.
	Resolve(ctx context.Context, event *Event) error
}

// SubaccountDetails are the bank details a vendor submits to create a
// Paystack subaccount.
type SubaccountDetails struct {
	BusinessName     string
	SettlementBank   string
	AccountNumber    string
	PercentageCharge float64
}

// Connect handles vendor payout destinations for one provider.
type Connect interface {
	// Connected reports whether the connection holds the provider's primary
	// credential (OAuth token, subaccount code or payout email).
	Connected(conn *models.VendorConnection) bool
	// OnboardingURL returns the provider OAuth consent URL carrying the
	// CSRF state. ErrUnsupported for providers onboarded by direct detail
	// submission (Paystack bank details, PayPal payout email).
	OnboardingURL(state string) (string, error)
	// ExchangeCode swaps an OAuth authorization code for a token pair.
	ExchangeCode(ctx context.Context, code string) (*models.VendorConnection, error)
	// RefreshToken renews a near-expiry OAuth token pair.
	RefreshToken(ctx context.Context, conn *models.VendorConnection) (*models.VendorConnection, error)
	// CreateSubaccount links a vendor's bank details as a split
	// destination. ErrUnsupported for OAuth providers.
	CreateSubaccount(ctx context.Context, details SubaccountDetails) (*models.VendorConnection, error)
	// DispatchPayout sends the vendor's earnings. ErrUnsupported for
	// providers that split at charge time (Mercado Pago, Paystack) or have
	// no payout API (Square).
	DispatchPayout(ctx context.Context, order *models.Order, conn *models.VendorConnection, split models.FeeSplit) (string, error)
}

// Provider bundles one payment provider's implementations behind a single
// key. Providers without subscription support return a nil
// SubscriptionMethod; providers without webhooks (offline) return a nil
// Webhook.
type Provider interface {
	Key() string
	PaymentMethod() PaymentMethod
	SubscriptionMethod() SubscriptionMethod
	Webhook() Webhook
	Connect() Connect
}

// Provider keys. DepositPriority is the order the wallet deposit flow picks
// the active gateway in: first configured wins.
const (
	KeyPayPal      = "paypal"
	KeyMercadoPago = "mercadopago"
	KeyPaystack    = "paystack"
	KeySquare      = "square"
	KeyOffline     = "offline"
)

// DepositPriority orders gateways for wallet deposits.
var DepositPriority = []string{KeyPayPal, KeyPaystack, KeyMercadoPago, KeySquare}

// Registry maps provider keys to implementations, preserving registration
// order for deterministic iteration.
type Registry struct {
	providers map[string]Provider
	keys      []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering the same key twice replaces the
// earlier provider but keeps its position.
func (r *Registry) Register(p Provider) {
	if _, exists := r.providers[p.Key()]; !exists {
		r.keys = append(r.keys, p.Key())
	}
	r.providers[p.Key()] = p
}

// Get returns the provider for key.
func (r *Registry) Get(key string) (Provider, bool) {
	p, ok := r.providers[key]
	return p, ok
}

// Keys returns the registered provider keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Env carries the cross-cutting collaborators provider packages need.
type Env struct {
	// BaseURL is this service's public base URL, used to build return and
	// webhook URLs.
	BaseURL       string
	CaptureMethod config.CaptureMethod
	Logger        *slog.Logger
	Transients    transient.Store
	// HTTPClient overrides the default 30s-timeout client in tests.
	HTTPClient *http.Client
}

// ReturnURL builds the customer return URL for a provider.
func (e *Env) ReturnURL(provider string) string {
	return e.BaseURL + "/payments/" + provider + "/return"
}

// CancelURL builds the customer cancel URL for a provider.
func (e *Env) CancelURL(provider string) string {
	return e.BaseURL + "/payments/" + provider + "/cancel"
}
