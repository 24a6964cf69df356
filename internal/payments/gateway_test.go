package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/orders"
)

type flakyGateway struct {
	failures int
	calls    int
}

func (g *flakyGateway) Name() string { return "flaky" }

func (g *flakyGateway) CreateIntent(_ context.Context, order orders.Order) (Intent, error) {
	g.calls++
	if g.calls <= g.failures {
		return Intent{}, errors.New("upstream timeout")
	}
	return Intent{Provider: g.Name(), Ref: "ref-" + order.ID}, nil
}

func (g *flakyGateway) VerifyNotification([]byte, http.Header) (Notification, error) {
	return Notification{}, nil
}

func TestCreateIntentWithRetryRecovers(t *testing.T) {
	g := &flakyGateway{failures: 2}

	intent, err := CreateIntentWithRetry(context.Background(), g, orders.Order{ID: "order-1", TotalPrice: 100})
	if err != nil {
		t.Fatalf("CreateIntentWithRetry: %v", err)
	}
	if intent.Ref != "ref-order-1" {
		t.Errorf("Ref = %q, want ref-order-1", intent.Ref)
	}
	if g.calls != 3 {
		t.Errorf("calls = %d, want 3", g.calls)
	}
}

func TestCreateIntentWithRetryGivesUp(t *testing.T) {
	g := &flakyGateway{failures: 100}

	_, err := CreateIntentWithRetry(context.Background(), g, orders.Order{ID: "order-1"})
	if !errors.Is(err, ErrProvider) {
		t.Errorf("error = %v, want ErrProvider", err)
	}
	if g.calls != 4 { // initial attempt plus three retries
		t.Errorf("calls = %d, want 4", g.calls)
	}
}
