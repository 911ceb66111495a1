package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

// Webhook verifies and parses Mercado Pago IPN/webhook notifications.
//
// Notifications only carry the resource id; the actual payment payload and
// the order correlation (external_reference) are fetched in Resolve.
type Webhook struct {
	payments *PaymentMethod
	cfg      config.MercadoPagoConfig
}

// NewWebhook creates the Mercado Pago webhook handler.
func NewWebhook(payments *PaymentMethod, cfg config.MercadoPagoConfig) *Webhook {
	return &Webhook{payments: payments, cfg: cfg}
}

// Verify checks the x-signature header against the configured webhook
// secret. The signed manifest is built from the data id, the x-request-id
// header and the ts component of the signature itself. With no secret
// configured verification is skipped.
func (w *Webhook) Verify(ctx context.Context, r *http.Request, body []byte) error {
	if w.cfg.WebhookSecret == "" {
		return nil
	}

	signature := r.Header.Get("x-signature")
	if signature == "" {
		return fmt.Errorf("missing x-signature header: %w", gateway.ErrSignatureInvalid)
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("malformed x-signature header: %w", gateway.ErrSignatureInvalid)
	}

	dataID := dataIDFrom(r, body)
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), r.Header.Get("x-request-id"), ts)

	mac := hmac.New(sha256.New, []byte(w.cfg.WebhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return gateway.ErrSignatureInvalid
	}
	return nil
}

// Parse classifies the notification. Payment and preapproval notifications
// carry no payload of their own; Resolve fills them in.
func (w *Webhook) Parse(body []byte) (*gateway.Event, error) {
	var notification struct {
		Type   string `json:"type"`
		Action string `json:"action"`
		Data   struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("decoding notification: %w", err)
	}

	eventType := notification.Type
	if eventType == "" {
		eventType = notification.Action
	}
	resourceID := notification.Data.ID.String()

	switch {
	case strings.HasPrefix(eventType, "payment"):
		return &gateway.Event{
			Kind:       gateway.EventPayment,
			Type:       eventType,
			ResourceID: resourceID,
		}, nil
	case strings.HasPrefix(eventType, "subscription_preapproval"), strings.HasPrefix(eventType, "preapproval"):
		return &gateway.Event{
			Kind:        gateway.EventSubscription,
			Type:        eventType,
			ResourceID:  resourceID,
			LookupPath:  detailPreapprovalID,
			LookupValue: resourceID,
		}, nil
	default:
		return &gateway.Event{Kind: gateway.EventIgnored, Type: eventType}, nil
	}
}

// Resolve fetches the referenced payment and correlates it back to the
// order through external_reference.
func (w *Webhook) Resolve(ctx context.Context, event *gateway.Event) error {
	if event.Kind != gateway.EventPayment || event.ResourceID == "" {
		return nil
	}

	payload, err := w.payments.FetchByID(ctx, event.ResourceID)
	if err != nil {
		return fmt.Errorf("resolving payment %s: %w", event.ResourceID, err)
	}

	var payment struct {
		ExternalReference string `json:"external_reference"`
	}
	if err := json.Unmarshal(payload, &payment); err != nil {
		return fmt.Errorf("decoding payment %s: %w", event.ResourceID, err)
	}

	if orderID, ok := gateway.ParseOrderRef(payment.ExternalReference); ok {
		event.OrderID = orderID
	} else {
		event.LookupPath = detailPaymentID
		event.LookupValue = event.ResourceID
	}
	event.Payload = payload
	return nil
}

// dataIDFrom extracts the resource id, preferring the data.id query
// parameter over the notification body.
func dataIDFrom(r *http.Request, body []byte) string {
	if id := r.URL.Query().Get("data.id"); id != "" {
		return id
	}
	var notification struct {
		Data struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &notification); err != nil {
		return ""
	}
	return notification.Data.ID.String()
}
