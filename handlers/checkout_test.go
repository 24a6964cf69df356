package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"storefront/internal/orders"
	"storefront/internal/payments"
)

func checkoutOrder(t *testing.T, e *testEnv) orders.Order {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/checkout", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout status = %d, body %s", w.Code, w.Body.String())
	}

	var o orders.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("decoding checkout response: %v", err)
	}
	return o
}

func shippingBody() map[string]string {
	return map[string]string{
		"shipping_name":    "Jo Soap",
		"shipping_email":   "jo@example.com",
		"shipping_phone":   "0821234567",
		"shipping_address": "1 Long St, Cape Town",
	}
}

func TestCheckoutFreezesTotalAndConsumesCart(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.cart.seedProduct(testProductB, 50)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductB, "size_id": testSizeS}, true)

	o := checkoutOrder(t, e)

	if o.TotalPrice != 250 {
		t.Errorf("total = %d, want 250", o.TotalPrice)
	}
	if o.Status != orders.StatusPending {
		t.Errorf("status = %q, want %q", o.Status, orders.StatusPending)
	}
	if len(o.Items) != 2 {
		t.Errorf("items = %d, want 2", len(o.Items))
	}

	// The cart was consumed, so a second checkout has nothing to work with.
	w := e.do(t, http.MethodPost, "/api/checkout", nil, true)
	if w.Code != http.StatusConflict {
		t.Errorf("second checkout status = %d, want 409", w.Code)
	}
	if len(e.orders.byID) != 1 {
		t.Errorf("orders created = %d, want 1", len(e.orders.byID))
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	e.do(t, http.MethodDelete, "/api/cart/items/1", nil, true)

	w := e.do(t, http.MethodPost, "/api/checkout", nil, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(e.orders.byID) != 0 {
		t.Errorf("orders created = %d, want 0", len(e.orders.byID))
	}
}

func TestCreatePaymentIntentRequiresShipping(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	o := checkoutOrder(t, e)

	w := e.do(t, http.MethodPost, "/api/orders/"+o.ID+"/pay", nil, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}
	if e.gateway.intents != 0 {
		t.Errorf("intents created = %d, want 0", e.gateway.intents)
	}
}

func TestCreatePaymentIntentOncePerOrder(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	o := checkoutOrder(t, e)

	if w := e.do(t, http.MethodPut, "/api/orders/"+o.ID+"/shipping", shippingBody(), true); w.Code != http.StatusOK {
		t.Fatalf("shipping status = %d, body %s", w.Code, w.Body.String())
	}

	w := e.do(t, http.MethodPost, "/api/orders/"+o.ID+"/pay", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("pay status = %d, body %s", w.Code, w.Body.String())
	}

	var intent payments.Intent
	if err := json.Unmarshal(w.Body.Bytes(), &intent); err != nil {
		t.Fatalf("decoding intent: %v", err)
	}
	if intent.ClientSecret == "" {
		t.Error("intent carries no client secret")
	}
	if got := e.orders.byID[o.ID].Status; got != orders.StatusAwaitingPayment {
		t.Errorf("order status = %q, want %q", got, orders.StatusAwaitingPayment)
	}
	if got := e.orders.byID[o.ID].ProviderRef; got != intent.Ref {
		t.Errorf("provider ref = %q, want %q", got, intent.Ref)
	}

	// A second attempt loses the status compare-and-swap.
	w = e.do(t, http.MethodPost, "/api/orders/"+o.ID+"/pay", nil, true)
	if w.Code != http.StatusConflict {
		t.Errorf("second pay status = %d, want 409", w.Code)
	}
	if e.gateway.intents != 1 {
		t.Errorf("intents created = %d, want 1", e.gateway.intents)
	}
}

func TestCreatePaymentIntentUnknownOrder(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/orders/ghost/pay", nil, true)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCreatePaymentIntentProviderFailureLeavesOrderPayable(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	o := checkoutOrder(t, e)

	if w := e.do(t, http.MethodPut, "/api/orders/"+o.ID+"/shipping", shippingBody(), true); w.Code != http.StatusOK {
		t.Fatalf("shipping status = %d, body %s", w.Code, w.Body.String())
	}

	e.gateway.fail = true
	w := e.do(t, http.MethodPost, "/api/orders/"+o.ID+"/pay", nil, true)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("pay status = %d, want 502, body %s", w.Code, w.Body.String())
	}

	// The status CAS was reverted, so the order is not stuck awaiting a payment
	// that never started.
	if got := e.orders.byID[o.ID].Status; got != orders.StatusPending {
		t.Fatalf("order status after provider failure = %q, want %q", got, orders.StatusPending)
	}

	e.gateway.fail = false
	w = e.do(t, http.MethodPost, "/api/orders/"+o.ID+"/pay", nil, true)
	if w.Code != http.StatusOK {
		t.Errorf("retry after provider recovery = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestOrderRoutesRejectMalformedIDs(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/orders/not-a-uuid"},
		{http.MethodPost, "/api/orders/not-a-uuid/pay"},
		{http.MethodPut, "/api/orders/not-a-uuid/shipping"},
	}
	for _, tc := range cases {
		w := e.do(t, tc.method, tc.path, nil, true)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.path, w.Code)
		}
	}

	// Public product lookup takes the same short-circuit.
	w := e.do(t, http.MethodGet, "/api/products/not-a-uuid", nil, false)
	if w.Code != http.StatusNotFound {
		t.Errorf("product status = %d, want 404", w.Code)
	}
}

func TestUpdateShippingOnSomeoneElsesOrder(t *testing.T) {
	e := newTestEnv(t)
	e.orders.byID[testOrderID] = &orders.Order{ID: testOrderID, UserID: "someone-else", Status: orders.StatusPending}

	w := e.do(t, http.MethodPut, "/api/orders/"+testOrderID+"/shipping", shippingBody(), true)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403, body %s", w.Code, w.Body.String())
	}
	if got := e.orders.byID[testOrderID].ShippingName; got != "" {
		t.Errorf("shipping name written anyway: %q", got)
	}
}

func TestUpdateShippingValidation(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	o := checkoutOrder(t, e)

	body := shippingBody()
	body["shipping_email"] = "not-an-email"
	w := e.do(t, http.MethodPut, "/api/orders/"+o.ID+"/shipping", body, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
