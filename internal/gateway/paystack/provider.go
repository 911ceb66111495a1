package paystack

import (
	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

// Provider bundles the Paystack integration.
type Provider struct {
	payment      *PaymentMethod
	subscription *SubscriptionMethod
	webhook      *Webhook
	connect      *Connect
}

// New assembles the Paystack provider.
func New(cfg config.PaystackConfig, env *gateway.Env) *Provider {
	client := NewClient(cfg, env)
	return &Provider{
		payment:      NewPaymentMethod(client, env),
		subscription: NewSubscriptionMethod(client, env),
		webhook:      NewWebhook(cfg),
		connect:      NewConnect(client),
	}
}

// Key returns the provider key.
func (p *Provider) Key() string { return gateway.KeyPaystack }

// PaymentMethod returns the one-time payment method.
func (p *Provider) PaymentMethod() gateway.PaymentMethod { return p.payment }

// SubscriptionMethod returns the subscription method.
func (p *Provider) SubscriptionMethod() gateway.SubscriptionMethod { return p.subscription }

// Webhook returns the webhook handler.
func (p *Provider) Webhook() gateway.Webhook { return p.webhook }

// Connect returns the marketplace client.
func (p *Provider) Connect() gateway.Connect { return p.connect }

var _ gateway.Provider = (*Provider)(nil)
