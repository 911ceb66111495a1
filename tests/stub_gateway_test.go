//nolint:errcheck // unchecked errors are acceptable in test files
package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/gateway/offline"
	"github.com/voxelpay/payments/internal/models"
)

// stubProvider is a scriptable gateway registered under a real provider
// key. Fetch serves whatever payload the test scripted and the webhook
// accepts simple JSON deliveries, so reconciliation flows run end to end
// against the database without external calls.
type stubProvider struct {
	key     string
	payment stubPaymentMethod
	connect offline.Connect
}

func newStubProvider(key string) *stubProvider {
	return &stubProvider{key: key, payment: stubPaymentMethod{key: key}}
}

func (p *stubProvider) Key() string { return p.key }

func (p *stubProvider) PaymentMethod() gateway.PaymentMethod { return &p.payment }

func (p *stubProvider) SubscriptionMethod() gateway.SubscriptionMethod { return nil }

func (p *stubProvider) Webhook() gateway.Webhook { return &stubWebhook{} }

func (p *stubProvider) Connect() gateway.Connect { return &p.connect }

// setRemoteState scripts the payload the next Fetch returns, standing in
// for the provider-side payment state.
func (p *stubProvider) setRemoteState(status models.OrderStatus, transactionID string) {
	payload, _ := json.Marshal(map[string]any{
		"status":         string(status),
		"transaction_id": transactionID,
	})
	p.payment.mu.Lock()
	p.payment.remote = payload
	p.payment.mu.Unlock()
}

type stubPaymentMethod struct {
	key    string
	mu     sync.Mutex
	remote json.RawMessage
}

func (m *stubPaymentMethod) Checkout(ctx context.Context, order *models.Order, _ *models.FeeSplit) (*gateway.Checkout, error) {
	return &gateway.Checkout{RedirectURL: "https://pay.stub.example/session"}, nil
}

func (m *stubPaymentMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remote == nil {
		return nil, models.ErrNotFound
	}
	return m.remote, nil
}

func (m *stubPaymentMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, m.key, "payment", payload)
	if err != nil {
		return err
	}
	if txnID, _ := doc["transaction_id"].(string); txnID != "" {
		gateway.SetTransactionID(order, m.key, txnID)
	}
	if status, _ := doc["status"].(string); status != "" {
		order.Status = models.OrderStatus(status)
	}
	return nil
}

func (m *stubPaymentMethod) Capture(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	return nil, gateway.ErrUnsupported
}

func (m *stubPaymentMethod) Refund(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	return nil, gateway.ErrUnsupported
}

func (m *stubPaymentMethod) ShouldSync(order *models.Order) bool {
	return !order.Status.IsTerminal()
}

// stubWebhook accepts unsigned JSON deliveries carrying the order id and
// the payment payload inline.
type stubWebhook struct{}

func (w *stubWebhook) Verify(ctx context.Context, r *http.Request, body []byte) error { return nil }

func (w *stubWebhook) Parse(body []byte) (*gateway.Event, error) {
	var delivery struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.Unmarshal(body, &delivery); err != nil {
		return nil, err
	}
	return &gateway.Event{
		Kind:    gateway.EventPayment,
		Type:    "payment.updated",
		OrderID: delivery.OrderID,
		Payload: body,
	}, nil
}

func (w *stubWebhook) Resolve(ctx context.Context, event *gateway.Event) error { return nil }

// capturePublisher records published domain events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) Publish(name string, _ map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
}

func (p *capturePublisher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == name {
			n++
		}
	}
	return n
}
