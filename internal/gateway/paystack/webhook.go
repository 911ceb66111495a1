package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

// Webhook verifies and parses Paystack event notifications. Events carry
// the full resource inline, so no Resolve round-trip is needed.
type Webhook struct {
	cfg config.PaystackConfig
}

// NewWebhook creates the Paystack webhook handler.
func NewWebhook(cfg config.PaystackConfig) *Webhook {
	return &Webhook{cfg: cfg}
}

// Verify checks the x-paystack-signature header: hex HMAC-SHA512 of the
// raw body keyed with the secret key (or a dedicated webhook secret when
// configured).
func (w *Webhook) Verify(ctx context.Context, r *http.Request, body []byte) error {
	secret := w.cfg.WebhookSecret
	if secret == "" {
		secret = w.cfg.SecretKey
	}
	if secret == "" {
		return fmt.Errorf("paystack secret is not configured: %w", gateway.ErrSignatureInvalid)
	}

	signature := r.Header.Get("x-paystack-signature")
	if signature == "" {
		return fmt.Errorf("missing x-paystack-signature header: %w", gateway.ErrSignatureInvalid)
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return gateway.ErrSignatureInvalid
	}
	return nil
}

// Parse classifies the event and extracts the inline resource.
func (w *Webhook) Parse(body []byte) (*gateway.Event, error) {
	var event struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	switch {
	case event.Event == "charge.success" || strings.HasPrefix(event.Event, "refund."):
		var data struct {
			Reference string `json:"reference"`
			Metadata  struct {
				OrderID int64 `json:"order_id"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decoding charge data: %w", err)
		}

		out := &gateway.Event{
			Kind:       gateway.EventPayment,
			Type:       event.Event,
			ResourceID: data.Reference,
			Payload:    event.Data,
		}
		if orderID, ok := gateway.ParseOrderRef(data.Reference); ok {
			out.OrderID = orderID
		} else if data.Metadata.OrderID > 0 {
			out.OrderID = data.Metadata.OrderID
		} else {
			out.LookupPath = detailReference
			out.LookupValue = data.Reference
		}
		return out, nil

	case strings.HasPrefix(event.Event, "subscription.") || strings.HasPrefix(event.Event, "invoice."):
		var data struct {
			SubscriptionCode string `json:"subscription_code"`
			Subscription     struct {
				SubscriptionCode string `json:"subscription_code"`
			} `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decoding subscription data: %w", err)
		}

		code := data.SubscriptionCode
		if code == "" {
			code = data.Subscription.SubscriptionCode
		}
		out := &gateway.Event{
			Kind:        gateway.EventSubscription,
			Type:        event.Event,
			ResourceID:  code,
			LookupPath:  detailSubscriptionCode,
			LookupValue: code,
		}
		// Invoice events describe a charge, not the subscription itself;
		// leave the payload empty so the flow re-fetches the subscription.
		if strings.HasPrefix(event.Event, "subscription.") {
			out.Payload = event.Data
		}
		return out, nil

	default:
		return &gateway.Event{Kind: gateway.EventIgnored, Type: event.Event}, nil
	}
}

// Resolve is a no-op: Paystack events are self-contained.
func (w *Webhook) Resolve(ctx context.Context, event *gateway.Event) error {
	return nil
}
