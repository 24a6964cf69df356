package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/orders"
	"storefront/internal/payments"
)

// Fixture ids are uuid-shaped because the handlers reject malformed ids before
// they reach a store.
const (
	testProductA = "aaaaaaaa-0000-0000-0000-000000000001"
	testProductB = "aaaaaaaa-0000-0000-0000-000000000002"
	testSizeS    = "bbbbbbbb-0000-0000-0000-000000000001"
	testSizeM    = "bbbbbbbb-0000-0000-0000-000000000002"
	testSizeL    = "bbbbbbbb-0000-0000-0000-000000000003"
	testOrderID  = "cccccccc-0000-0000-0000-000000000001"
)

// In-memory stand-ins for the SQL-backed Confs. They honor the same contracts:
// one line per (product, size), status compare-and-swap, ownership filters.

type fakeCart struct {
	active bool
	lines  []cart.CartItem
	nextID int
	prices map[string]int64 // product id -> unit price
}

func newFakeCart() *fakeCart {
	return &fakeCart{prices: map[string]int64{}}
}

func (f *fakeCart) seedProduct(productID string, price int64) {
	f.prices[productID] = price
}

func (f *fakeCart) AddItem(_ context.Context, _, productID, sizeID string) (cart.CartItem, error) {
	if _, ok := f.prices[productID]; !ok {
		return cart.CartItem{}, cart.ErrSizeNotFound
	}
	f.active = true
	for i := range f.lines {
		if f.lines[i].ProductID == productID && f.lines[i].SizeID == sizeID {
			f.lines[i].Quantity++
			if f.lines[i].Quantity > cart.MaxQuantityPerLine {
				f.lines[i].Quantity--
				return cart.CartItem{}, cart.ErrQuantityCap
			}
			return f.lines[i], nil
		}
	}
	f.nextID++
	line := cart.CartItem{ID: f.nextID, ProductID: productID, SizeID: sizeID, Quantity: 1}
	f.lines = append(f.lines, line)
	return line, nil
}

func (f *fakeCart) UpdateQuantity(_ context.Context, _ string, itemID, newQuantity int) error {
	if newQuantity < 1 {
		return cart.ErrInvalidQuantity
	}
	if newQuantity > cart.MaxQuantityPerLine {
		return cart.ErrQuantityCap
	}
	for i := range f.lines {
		if f.lines[i].ID == itemID {
			f.lines[i].Quantity = newQuantity
			return nil
		}
	}
	return cart.ErrNotFound
}

func (f *fakeCart) RemoveItem(_ context.Context, _ string, itemID int) error {
	for i := range f.lines {
		if f.lines[i].ID == itemID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return cart.ErrNotFound
}

func (f *fakeCart) GetActiveCartItems(context.Context, string) (*cart.CartResponse, error) {
	if !f.active {
		return nil, cart.ErrNotFound
	}
	return &cart.CartResponse{CartID: 1, Items: f.lines}, nil
}

type fakeOrders struct {
	cart *fakeCart
	byID map[string]*orders.Order
}

func newFakeOrders(c *fakeCart) *fakeOrders {
	return &fakeOrders{cart: c, byID: map[string]*orders.Order{}}
}

func (f *fakeOrders) Materialize(_ context.Context, userID string) (orders.Order, error) {
	if !f.cart.active {
		return orders.Order{}, orders.ErrNoActiveCart
	}
	if len(f.cart.lines) == 0 {
		return orders.Order{}, orders.ErrEmptyCart
	}

	o := &orders.Order{ID: uuid.NewString(), UserID: userID, Status: orders.StatusPending}
	for _, line := range f.cart.lines {
		o.Items = append(o.Items, orders.OrderItem{
			OrderID:   o.ID,
			ProductID: line.ProductID,
			SizeID:    line.SizeID,
			Quantity:  line.Quantity,
			UnitPrice: f.cart.prices[line.ProductID],
		})
	}
	o.TotalPrice = orders.Total(o.Items)
	f.byID[o.ID] = o
	f.cart.active = false
	f.cart.lines = nil
	return *o, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, orderID, ownerID string) (orders.Order, error) {
	o, ok := f.byID[orderID]
	if !ok || (ownerID != "" && o.UserID != ownerID) {
		return orders.Order{}, orders.ErrNotFound
	}
	return *o, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListAll(_ context.Context, status string, _, _ int) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.byID {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateShipping(_ context.Context, orderID, callerUserID string, d orders.ShippingDetails) error {
	o, ok := f.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.UserID != callerUserID {
		return orders.ErrUnauthorized
	}
	o.ShippingName, o.ShippingEmail = d.Name, d.Email
	o.ShippingPhone, o.ShippingAddress = d.Phone, d.Address
	return nil
}

func (f *fakeOrders) BeginPayment(_ context.Context, orderID, callerUserID string) error {
	o, ok := f.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.UserID != callerUserID {
		return orders.ErrUnauthorized
	}
	if o.Status != orders.StatusPending {
		return orders.ErrWrongStatus
	}
	o.Status = orders.StatusAwaitingPayment
	return nil
}

func (f *fakeOrders) SetProviderRef(_ context.Context, orderID, providerRef string) error {
	o, ok := f.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.ProviderRef = providerRef
	return nil
}

func (f *fakeOrders) CancelPayment(_ context.Context, orderID string) error {
	o, ok := f.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status == orders.StatusAwaitingPayment {
		o.Status = orders.StatusPending
	}
	return nil
}

func (f *fakeOrders) MarkCompleted(_ context.Context, orderID, providerRef string) (bool, error) {
	o, ok := f.byID[orderID]
	if !ok {
		return false, orders.ErrNotFound
	}
	if o.Status == orders.StatusCompleted {
		return false, nil
	}
	o.Status = orders.StatusCompleted
	o.ProviderRef = providerRef
	return true, nil
}

func (f *fakeOrders) SetTracking(_ context.Context, orderID, trackingNumber string) error {
	o, ok := f.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.TrackingNumber = trackingNumber
	return nil
}

// fakeGateway authenticates webhook payloads with a shared-secret header and
// returns canned intents. Setting fail simulates a provider outage.
type fakeGateway struct {
	intents int
	fail    bool
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateIntent(_ context.Context, order orders.Order) (payments.Intent, error) {
	g.intents++
	if g.fail {
		return payments.Intent{}, errors.New("provider unavailable")
	}
	return payments.Intent{
		Provider:     g.Name(),
		Ref:          fmt.Sprintf("ref-%s-%d", order.ID, g.intents),
		ClientSecret: "cs_test",
	}, nil
}

func (g *fakeGateway) VerifyNotification(payload []byte, header http.Header) (payments.Notification, error) {
	if header.Get("X-Test-Signature") != "valid" {
		return payments.Notification{}, payments.ErrBadSignature
	}
	var n payments.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return payments.Notification{}, err
	}
	return n, nil
}

type fakeProducer struct {
	produced int
}

func (p *fakeProducer) ProduceMessage(string, []byte, []byte) error {
	p.produced++
	return nil
}

type fakeMailer struct {
	confirmations []string
}

func (m *fakeMailer) SendVerification(string, string) error  { return nil }
func (m *fakeMailer) SendPasswordReset(string, string) error { return nil }
func (m *fakeMailer) SendOrderConfirmation(to, orderID string) error {
	m.confirmations = append(m.confirmations, orderID)
	return nil
}

type testEnv struct {
	router  *gin.Engine
	keys    *auth.Keys
	cart    *fakeCart
	orders  *fakeOrders
	gateway *fakeGateway
	events  *fakeProducer
	mailer  *fakeMailer
	token   string
	userID  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys, err := auth.NewKeys("test-secret")
	if err != nil {
		t.Fatalf("NewKeys: %v", err)
	}

	userID := "11111111-1111-1111-1111-111111111111"
	token, err := keys.GenerateToken(userID, auth.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	fc := newFakeCart()
	fo := newFakeOrders(fc)
	gw := &fakeGateway{}
	events := &fakeProducer{}
	mailer := &fakeMailer{}

	cfg := &config.Config{AppBaseURL: "http://test.local", GinMode: gin.TestMode}
	h := NewHandler(cfg, keys, gw, fc, fo, nil, nil, nil, nil, nil, events, mailer)

	router, err := API(h)
	if err != nil {
		t.Fatalf("API: %v", err)
	}

	return &testEnv{
		router:  router,
		keys:    keys,
		cart:    fc,
		orders:  fo,
		gateway: gw,
		events:  events,
		mailer:  mailer,
		token:   token,
		userID:  userID,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	token := ""
	if authed {
		token = e.token
	}
	return e.doAs(t, method, path, body, token)
}

func (e *testEnv) doAs(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.keys.GenerateToken("22222222-2222-2222-2222-222222222222", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}
