package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"storefront/internal/orders"
)

// ErrProvider wraps any upstream payment-processor failure so callers can
// distinguish it from local errors without inspecting provider SDK types.
var ErrProvider = errors.New("payment provider error")

// ErrBadSignature is returned when a webhook payload fails signature
// verification. Nothing from such a payload may be trusted.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Intent is a provider-issued authorization to charge an order's frozen total.
// Exactly one of ClientSecret (widget-driven flows) or RedirectURL (hosted
// checkout flows) is set, depending on the gateway.
type Intent struct {
	Provider     string `json:"provider"`
	Ref          string `json:"ref"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
}

// Notification is the verified, provider-neutral content of a webhook payload.
type Notification struct {
	OrderID     string
	ProviderRef string
	Completed   bool
}

// Gateway is the single payment-processor seam. Both provider integrations sit
// behind it so the checkout handler applies one authorization and amount policy
// regardless of provider.
type Gateway interface {
	Name() string

	// CreateIntent asks the provider to authorize a charge for the order's
	// frozen total and returns a client-usable token.
	CreateIntent(ctx context.Context, order orders.Order) (Intent, error)

	// VerifyNotification authenticates a raw webhook payload and extracts the
	// order outcome. It must fail before any caller mutates state.
	VerifyNotification(payload []byte, header http.Header) (Notification, error)
}

// CreateIntentWithRetry wraps Gateway.CreateIntent with capped exponential
// backoff. Intent creation is the one external call on the checkout path worth
// hardening; webhook delivery already retries on the provider side.
func CreateIntentWithRetry(ctx context.Context, g Gateway, order orders.Order) (Intent, error) {
	var intent Intent

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		intent, err = g.CreateIntent(ctx, order)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return intent, nil
}
