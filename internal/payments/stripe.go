package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"

	"storefront/internal/orders"
)

// StripeGateway issues payment intents consumed by Stripe Elements on the
// client and verifies webhook events with the endpoint's signing secret.
type StripeGateway struct {
	webhookSecret string
	currency      string
}

func NewStripeGateway(secretKey, webhookSecret string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		currency:      string(stripe.CurrencyUSD),
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

// CreateIntent charges the order's frozen total. The order id travels in the
// intent metadata and comes back in the webhook, which is how the reconciler
// finds the order.
func (g *StripeGateway) CreateIntent(ctx context.Context, order orders.Order) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(order.TotalPrice),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id": order.ID,
			"user_id":  order.UserID,
		},
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return Intent{
		Provider:     g.Name(),
		Ref:          pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// VerifyNotification checks the Stripe-Signature header against the endpoint
// secret before reading anything out of the event.
func (g *StripeGateway) VerifyNotification(payload []byte, header http.Header) (Notification, error) {
	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if event.Type != "payment_intent.succeeded" {
		return Notification{}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Notification{}, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	orderID := pi.Metadata["order_id"]
	if orderID == "" {
		return Notification{}, fmt.Errorf("payment intent %s carries no order_id metadata", pi.ID)
	}

	return Notification{
		OrderID:     orderID,
		ProviderRef: pi.ID,
		Completed:   true,
	}, nil
}
