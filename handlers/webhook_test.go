package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/orders"
	"storefront/internal/payments"
)

func (e *testEnv) postWebhook(t *testing.T, n payments.Notification, signature string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshaling notification: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/payment-webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Signature", signature)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func paidOrder(e *testEnv) *orders.Order {
	o := &orders.Order{
		ID:            testOrderID,
		UserID:        e.userID,
		Status:        orders.StatusAwaitingPayment,
		TotalPrice:    250,
		ShippingEmail: "jo@example.com",
		Items: []orders.OrderItem{
			{OrderID: testOrderID, ProductID: testProductA, SizeID: testSizeM, Quantity: 2, UnitPrice: 100},
			{OrderID: testOrderID, ProductID: testProductB, SizeID: testSizeS, Quantity: 1, UnitPrice: 50},
		},
	}
	e.orders.byID[o.ID] = o
	return o
}

func TestWebhookCompletesOrder(t *testing.T) {
	e := newTestEnv(t)
	o := paidOrder(e)

	w := e.postWebhook(t, payments.Notification{OrderID: o.ID, ProviderRef: "pi_123", Completed: true}, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if o.Status != orders.StatusCompleted {
		t.Errorf("order status = %q, want %q", o.Status, orders.StatusCompleted)
	}
	if o.ProviderRef != "pi_123" {
		t.Errorf("provider ref = %q, want pi_123", o.ProviderRef)
	}
	if e.events.produced != len(o.Items) {
		t.Errorf("events produced = %d, want %d", e.events.produced, len(o.Items))
	}
	if len(e.mailer.confirmations) != 1 || e.mailer.confirmations[0] != o.ID {
		t.Errorf("confirmation emails = %v, want [%s]", e.mailer.confirmations, o.ID)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	o := paidOrder(e)

	n := payments.Notification{OrderID: o.ID, ProviderRef: "pi_123", Completed: true}
	for i := 0; i < 2; i++ {
		if w := e.postWebhook(t, n, "valid"); w.Code != http.StatusOK {
			t.Fatalf("delivery #%d status = %d", i+1, w.Code)
		}
	}

	if o.Status != orders.StatusCompleted {
		t.Errorf("order status after replay = %q, want %q", o.Status, orders.StatusCompleted)
	}

	// The side effects fire for the first delivery only.
	if e.events.produced != len(o.Items) {
		t.Errorf("events produced = %d, want %d (replay must not re-emit)", e.events.produced, len(o.Items))
	}
	if len(e.mailer.confirmations) != 1 {
		t.Errorf("confirmation emails = %d, want 1 (replay must not re-send)", len(e.mailer.confirmations))
	}
}

func TestWebhookBadSignature(t *testing.T) {
	e := newTestEnv(t)
	o := paidOrder(e)

	w := e.postWebhook(t, payments.Notification{OrderID: o.ID, ProviderRef: "pi_123", Completed: true}, "forged")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	// Nothing moves on a rejected payload.
	if o.Status != orders.StatusAwaitingPayment {
		t.Errorf("order status = %q, want %q", o.Status, orders.StatusAwaitingPayment)
	}
	if e.events.produced != 0 || len(e.mailer.confirmations) != 0 {
		t.Error("side effects ran for a rejected payload")
	}
}

func TestWebhookIgnoresIncompleteEvents(t *testing.T) {
	e := newTestEnv(t)
	o := paidOrder(e)

	w := e.postWebhook(t, payments.Notification{OrderID: o.ID, ProviderRef: "pi_123", Completed: false}, "valid")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if o.Status != orders.StatusAwaitingPayment {
		t.Errorf("order status = %q, want %q", o.Status, orders.StatusAwaitingPayment)
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	e := newTestEnv(t)

	unknown := "cccccccc-0000-0000-0000-00000000dead"
	w := e.postWebhook(t, payments.Notification{OrderID: unknown, ProviderRef: "pi_123", Completed: true}, "valid")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown order status = %d, want 404", w.Code)
	}

	w = e.postWebhook(t, payments.Notification{OrderID: "ghost", ProviderRef: "pi_123", Completed: true}, "valid")
	if w.Code != http.StatusNotFound {
		t.Errorf("malformed order id status = %d, want 404", w.Code)
	}
}
