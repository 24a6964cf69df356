package handlers

import (
	"net/http"
	"testing"
)

func TestAddToCartMergesDuplicateLines(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)

	body := map[string]string{"product_id": testProductA, "size_id": testSizeM}
	for i := 0; i < 2; i++ {
		w := e.do(t, http.MethodPost, "/api/cart/items", body, true)
		if w.Code != http.StatusOK {
			t.Fatalf("add #%d status = %d, body %s", i+1, w.Code, w.Body.String())
		}
	}

	if len(e.cart.lines) != 1 {
		t.Fatalf("cart lines = %d, want 1", len(e.cart.lines))
	}
	if got := e.cart.lines[0].Quantity; got != 2 {
		t.Errorf("quantity = %d, want 2", got)
	}
}

func TestAddToCartDifferentSizesStaySeparate(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)

	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeL}, true)

	if len(e.cart.lines) != 2 {
		t.Errorf("cart lines = %d, want 2", len(e.cart.lines))
	}
}

func TestAddToCartUnknownSize(t *testing.T) {
	e := newTestEnv(t)

	// Unknown but well-formed id resolves against the store.
	w := e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductB, "size_id": testSizeM}, true)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown product status = %d, want 404", w.Code)
	}

	// Malformed ids are rejected before any lookup.
	w = e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": "ghost", "size_id": testSizeM}, true)
	if w.Code != http.StatusNotFound {
		t.Errorf("malformed product status = %d, want 404", w.Code)
	}
}

func TestAddToCartRequiresAuth(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUpdateCartItemRejectsNonPositiveQuantity(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)

	for _, qty := range []int{0, -3} {
		w := e.do(t, http.MethodPatch, "/api/cart/items/1", map[string]int{"quantity": qty}, true)
		if w.Code != http.StatusBadRequest {
			t.Errorf("quantity %d: status = %d, want 400", qty, w.Code)
		}
	}

	// Rejected updates leave the line untouched.
	if got := e.cart.lines[0].Quantity; got != 2 {
		t.Errorf("quantity after rejected updates = %d, want 2", got)
	}
}

func TestUpdateCartItemNotFound(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPatch, "/api/cart/items/99", map[string]int{"quantity": 3}, true)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRemoveCartItem(t *testing.T) {
	e := newTestEnv(t)
	e.cart.seedProduct(testProductA, 100)
	e.do(t, http.MethodPost, "/api/cart/items", map[string]string{"product_id": testProductA, "size_id": testSizeM}, true)

	w := e.do(t, http.MethodDelete, "/api/cart/items/1", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(e.cart.lines) != 0 {
		t.Errorf("cart lines = %d, want 0", len(e.cart.lines))
	}
}

func TestGetCartWithoutCartReadsEmpty(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/cart", nil, true)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
