package paypal

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/transient"
)

// Fetched signing certs are reused across deliveries.
const certCacheTTL = 24 * time.Hour

// Webhook verifies and parses PayPal webhook deliveries using PayPal's
// cert-chain scheme: the signature header is an RSA-SHA256 signature over
// "transmissionID|timestamp|webhookID|crc32(body)", signed with the cert
// served at Paypal-Cert-Url.
type Webhook struct {
	client     *Client
	transients transient.Store
	httpClient *http.Client
	cfg        config.PayPalConfig
}

// NewWebhook creates the PayPal webhook handler.
func NewWebhook(client *Client, cfg config.PayPalConfig, env *gateway.Env) *Webhook {
	httpClient := env.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{
		client:     client,
		transients: env.Transients,
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// Verify checks the transmission signature. An empty configured webhook id
// skips verification, matching the accept-all convention of the other
// providers' empty-secret default.
func (w *Webhook) Verify(ctx context.Context, r *http.Request, body []byte) error {
	if w.cfg.WebhookID == "" {
		return nil
	}

	transmissionID := r.Header.Get("Paypal-Transmission-Id")
	timestamp := r.Header.Get("Paypal-Transmission-Time")
	signature := r.Header.Get("Paypal-Transmission-Sig")
	certURL := r.Header.Get("Paypal-Cert-Url")
	algo := r.Header.Get("Paypal-Auth-Algo")

	if transmissionID == "" || timestamp == "" || signature == "" || certURL == "" {
		return fmt.Errorf("missing transmission headers: %w", gateway.ErrSignatureInvalid)
	}
	if algo != "" && !strings.EqualFold(algo, "SHA256withRSA") {
		return fmt.Errorf("unsupported auth algo %q: %w", algo, gateway.ErrSignatureInvalid)
	}

	publicKey, err := w.signingKey(ctx, certURL)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("%s|%s|%s|%d", transmissionID, timestamp, w.cfg.WebhookID, crc32.ChecksumIEEE(body))
	digest := sha256.Sum256([]byte(message))

	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", gateway.ErrSignatureInvalid)
	}

	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], decoded); err != nil {
		return fmt.Errorf("signature mismatch: %w", gateway.ErrSignatureInvalid)
	}

	return nil
}

// signingKey fetches and caches the signing cert. Only https URLs on
// paypal.com hosts are accepted.
func (w *Webhook) signingKey(ctx context.Context, certURL string) (*rsa.PublicKey, error) {
	parsed, err := url.Parse(certURL)
	if err != nil || parsed.Scheme != "https" ||
		(parsed.Hostname() != "paypal.com" && !strings.HasSuffix(parsed.Hostname(), ".paypal.com")) {
		return nil, fmt.Errorf("untrusted cert url %q: %w", certURL, gateway.ErrSignatureInvalid)
	}

	cacheKey := "paypal:webhook_cert:" + certURL
	certPEM, err := w.transients.Get(ctx, cacheKey)
	if err != nil {
		certPEM, err = w.fetchCert(ctx, certURL)
		if err != nil {
			return nil, err
		}
		_ = w.transients.Set(ctx, cacheKey, certPEM, certCacheTTL) //nolint:errcheck // cache only
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("cert is not PEM: %w", gateway.ErrSignatureInvalid)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cert: %w", gateway.ErrSignatureInvalid)
	}
	publicKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cert key is not RSA: %w", gateway.ErrSignatureInvalid)
	}

	return publicKey, nil
}

func (w *Webhook) fetchCert(ctx context.Context, certURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cert request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing cert: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // close error is not actionable

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cert fetch returned status %d: %w", resp.StatusCode, gateway.ErrSignatureInvalid)
	}

	return io.ReadAll(resp.Body)
}

// Parse classifies the event envelope by event_type.
func (w *Webhook) Parse(body []byte) (*gateway.Event, error) {
	var envelope struct {
		EventType string          `json:"event_type"`
		Resource  json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}

	event := &gateway.Event{Type: envelope.EventType}

	switch {
	case strings.HasPrefix(envelope.EventType, "BILLING.SUBSCRIPTION."):
		var resource struct {
			ID       string `json:"id"`
			CustomID string `json:"custom_id"`
		}
		if err := json.Unmarshal(envelope.Resource, &resource); err != nil {
			return nil, fmt.Errorf("invalid subscription resource: %w", err)
		}
		event.Kind = gateway.EventSubscription
		event.ResourceID = resource.ID
		event.Payload = envelope.Resource
		if orderID, ok := gateway.ParseOrderRef(resource.CustomID); ok {
			event.OrderID = orderID
		} else {
			event.LookupPath = detailSubscriptionID
			event.LookupValue = resource.ID
		}

	case strings.HasPrefix(envelope.EventType, "PAYMENT.CAPTURE."),
		strings.HasPrefix(envelope.EventType, "CHECKOUT.ORDER."):
		var resource struct {
			ID                string `json:"id"`
			CustomID          string `json:"custom_id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
			PurchaseUnits []struct {
				CustomID string `json:"custom_id"`
			} `json:"purchase_units"`
		}
		if err := json.Unmarshal(envelope.Resource, &resource); err != nil {
			return nil, fmt.Errorf("invalid payment resource: %w", err)
		}

		event.Kind = gateway.EventPayment
		event.ResourceID = resource.ID

		customID := resource.CustomID
		if customID == "" && len(resource.PurchaseUnits) > 0 {
			customID = resource.PurchaseUnits[0].CustomID
		}
		if orderID, ok := gateway.ParseOrderRef(customID); ok {
			event.OrderID = orderID
		} else {
			paypalOrderID := resource.SupplementaryData.RelatedIDs.OrderID
			if strings.HasPrefix(envelope.EventType, "CHECKOUT.ORDER.") {
				paypalOrderID = resource.ID
			}
			if paypalOrderID == "" {
				event.Kind = gateway.EventIgnored
				break
			}
			event.LookupPath = detailOrderID
			event.LookupValue = paypalOrderID
		}
		// The capture resource is not the order payload the payment
		// method applies; leave Payload nil so the flow re-fetches the
		// checkout order after lookup.
		event.Payload = nil

	default:
		event.Kind = gateway.EventIgnored
	}

	return event, nil
}

// Resolve is a no-op: PayPal events carry order correlation directly and
// payment payloads are re-fetched per order.
func (w *Webhook) Resolve(context.Context, *gateway.Event) error {
	return nil
}
