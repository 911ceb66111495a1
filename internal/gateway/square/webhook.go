package square

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

// Webhook verifies and parses Square event notifications. The signature
// covers the notification URL concatenated with the raw body.
type Webhook struct {
	cfg config.SquareConfig
}

// NewWebhook creates the Square webhook handler.
func NewWebhook(cfg config.SquareConfig) *Webhook {
	return &Webhook{cfg: cfg}
}

// Verify checks the x-square-hmacsha256-signature header: base64
// HMAC-SHA256 of notificationURL+body keyed with the signature key. With
// no key configured verification is skipped.
func (w *Webhook) Verify(ctx context.Context, r *http.Request, body []byte) error {
	if w.cfg.WebhookSignatureKey == "" {
		return nil
	}

	signature := r.Header.Get("x-square-hmacsha256-signature")
	if signature == "" {
		return fmt.Errorf("missing x-square-hmacsha256-signature header: %w", gateway.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(w.cfg.WebhookSignatureKey))
	mac.Write([]byte(w.cfg.WebhookURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return gateway.ErrSignatureInvalid
	}
	return nil
}

// Parse classifies the event and extracts the inline payment object.
func (w *Webhook) Parse(body []byte) (*gateway.Event, error) {
	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				Payment json.RawMessage `json:"payment"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	if !strings.HasPrefix(event.Type, "payment.") && !strings.HasPrefix(event.Type, "refund.") {
		return &gateway.Event{Kind: gateway.EventIgnored, Type: event.Type}, nil
	}
	if len(event.Data.Object.Payment) == 0 {
		return &gateway.Event{Kind: gateway.EventIgnored, Type: event.Type}, nil
	}

	var payment struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(event.Data.Object.Payment, &payment); err != nil {
		return nil, fmt.Errorf("decoding payment object: %w", err)
	}

	return &gateway.Event{
		Kind:        gateway.EventPayment,
		Type:        event.Type,
		ResourceID:  payment.ID,
		LookupPath:  detailOrderID,
		LookupValue: payment.OrderID,
		Payload:     event.Data.Object.Payment,
	}, nil
}

// Resolve is a no-op: Square events carry the payment inline.
func (w *Webhook) Resolve(ctx context.Context, event *gateway.Event) error {
	return nil
}
