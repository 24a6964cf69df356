package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"storefront/internal/addresses"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/coupons"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/products"
	"storefront/internal/users"
	"storefront/internal/wishlist"
	"storefront/middleware"
)

// Store interfaces are declared where they are consumed so handler tests can
// substitute fakes; the production wiring passes the internal Confs.

type CartStore interface {
	AddItem(ctx context.Context, userID, productID, sizeID string) (cart.CartItem, error)
	UpdateQuantity(ctx context.Context, userID string, itemID, newQuantity int) error
	RemoveItem(ctx context.Context, userID string, itemID int) error
	GetActiveCartItems(ctx context.Context, userID string) (*cart.CartResponse, error)
}

type OrderStore interface {
	Materialize(ctx context.Context, userID string) (orders.Order, error)
	GetOrder(ctx context.Context, orderID, ownerID string) (orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]orders.Order, error)
	UpdateShipping(ctx context.Context, orderID, callerUserID string, d orders.ShippingDetails) error
	BeginPayment(ctx context.Context, orderID, callerUserID string) error
	CancelPayment(ctx context.Context, orderID string) error
	SetProviderRef(ctx context.Context, orderID, providerRef string) error
	MarkCompleted(ctx context.Context, orderID, providerRef string) (bool, error)
	SetTracking(ctx context.Context, orderID, trackingNumber string) error
}

type ProductStore interface {
	InsertProduct(ctx context.Context, np products.NewProduct) (products.Product, error)
	GetProductByID(ctx context.Context, productID string) (products.Product, error)
	ListProducts(ctx context.Context, category string, limit, offset int) ([]products.Product, error)
	ListSizes(ctx context.Context, productID string) ([]products.Size, error)
	ListAllForSitemap(ctx context.Context) ([]products.Product, error)
}

type UserStore interface {
	InsertUser(ctx context.Context, nu users.NewUser) (users.User, string, error)
	Authenticate(ctx context.Context, l users.Login) (users.User, error)
	VerifyEmail(ctx context.Context, token string) error
	ResetVerifyToken(ctx context.Context, email string) (string, error)
	IssueResetToken(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetByID(ctx context.Context, userID string) (users.User, error)
}

type WishlistStore interface {
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]wishlist.Item, error)
	RecordView(ctx context.Context, userID, productID string) error
	RecentlyViewed(ctx context.Context, userID string) ([]wishlist.Item, error)
}

type AddressStore interface {
	Insert(ctx context.Context, userID string, na addresses.NewAddress) (addresses.Address, error)
	SetDefault(ctx context.Context, userID, addressID string) error
	List(ctx context.Context, userID string) ([]addresses.Address, error)
	Delete(ctx context.Context, userID, addressID string) error
}

type CouponStore interface {
	GetByCode(ctx context.Context, code string) (coupons.Coupon, error)
}

type EventProducer interface {
	ProduceMessage(topic string, key, value []byte) error
}

type Mailer interface {
	SendVerification(to, verifyURL string) error
	SendPasswordReset(to, resetURL string) error
	SendOrderConfirmation(to, orderID string) error
}

type Handler struct {
	cfg       *config.Config
	keys      *auth.Keys
	gateway   payments.Gateway
	cart      CartStore
	orders    OrderStore
	products  ProductStore
	users     UserStore
	wishlist  WishlistStore
	addresses AddressStore
	coupons   CouponStore
	events    EventProducer
	mailer    Mailer
	validate  *validator.Validate
}

func NewHandler(cfg *config.Config, keys *auth.Keys, gateway payments.Gateway,
	cartStore CartStore, orderStore OrderStore, productStore ProductStore,
	userStore UserStore, wishlistStore WishlistStore, addressStore AddressStore,
	couponStore CouponStore, events EventProducer, mailer Mailer) *Handler {
	return &Handler{
		cfg:       cfg,
		keys:      keys,
		gateway:   gateway,
		cart:      cartStore,
		orders:    orderStore,
		products:  productStore,
		users:     userStore,
		wishlist:  wishlistStore,
		addresses: addressStore,
		coupons:   couponStore,
		events:    events,
		mailer:    mailer,
		validate:  validator.New(),
	}
}

// API builds the gin engine with every route wired.
func API(h *Handler) (*gin.Engine, error) {
	r := gin.New()
	switch h.cfg.GinMode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(h.cfg.GinMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	m, err := middleware.NewMid(h.keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build middleware: %w", err)
	}

	r.Use(middleware.Logger(), gin.Recovery())
	r.Use(cors.Default())

	r.GET("/ping", healthCheck)
	r.GET("/sitemap.xml", h.Sitemap)
	r.GET("/robots.txt", h.Robots)

	api := r.Group("/api")
	{
		// The webhook authenticates itself via the provider signature, not a
		// session.
		api.POST("/payment-webhook", h.Webhook)

		api.POST("/signup", h.Signup)
		api.POST("/login", h.Login)
		api.GET("/verify", h.VerifyEmail)
		api.GET("/resend-verification", h.ResendVerification)
		api.POST("/forgot-password", h.ForgotPassword)
		api.POST("/reset-password", h.ResetPassword)

		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/:id/sizes", h.ListSizes)
	}

	authed := api.Group("")
	authed.Use(m.Authentication())
	{
		authed.GET("/me", h.Me)

		authed.POST("/cart/items", m.Authorize(h.AddToCart, auth.RoleUser, auth.RoleAdmin))
		authed.PATCH("/cart/items/:id", m.Authorize(h.UpdateCartItem, auth.RoleUser, auth.RoleAdmin))
		authed.DELETE("/cart/items/:id", m.Authorize(h.RemoveCartItem, auth.RoleUser, auth.RoleAdmin))
		authed.GET("/cart", m.Authorize(h.GetCart, auth.RoleUser, auth.RoleAdmin))

		authed.POST("/checkout", m.Authorize(h.Checkout, auth.RoleUser, auth.RoleAdmin))
		authed.POST("/orders/:id/pay", m.Authorize(h.CreatePaymentIntent, auth.RoleUser, auth.RoleAdmin))
		authed.GET("/orders", m.Authorize(h.ListMyOrders, auth.RoleUser, auth.RoleAdmin))
		authed.GET("/orders/:id", m.Authorize(h.GetOrder, auth.RoleUser, auth.RoleAdmin))
		authed.PUT("/orders/:id/shipping", m.Authorize(h.UpdateShipping, auth.RoleUser, auth.RoleAdmin))

		authed.POST("/coupons", m.Authorize(h.ApplyCoupon, auth.RoleUser, auth.RoleAdmin))

		authed.POST("/wishlist", m.Authorize(h.AddToWishlist, auth.RoleUser, auth.RoleAdmin))
		authed.DELETE("/wishlist/:productID", m.Authorize(h.RemoveFromWishlist, auth.RoleUser, auth.RoleAdmin))
		authed.GET("/wishlist", m.Authorize(h.GetWishlist, auth.RoleUser, auth.RoleAdmin))
		authed.POST("/recently-viewed", m.Authorize(h.RecordView, auth.RoleUser, auth.RoleAdmin))
		authed.GET("/recently-viewed", m.Authorize(h.GetRecentlyViewed, auth.RoleUser, auth.RoleAdmin))

		authed.POST("/addresses", m.Authorize(h.CreateAddress, auth.RoleUser, auth.RoleAdmin))
		authed.GET("/addresses", m.Authorize(h.ListAddresses, auth.RoleUser, auth.RoleAdmin))
		authed.PUT("/addresses/:id/default", m.Authorize(h.SetDefaultAddress, auth.RoleUser, auth.RoleAdmin))
		authed.DELETE("/addresses/:id", m.Authorize(h.DeleteAddress, auth.RoleUser, auth.RoleAdmin))

		authed.POST("/admin/products", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		authed.GET("/admin/orders", m.Authorize(h.AdminListOrders, auth.RoleAdmin))
		authed.GET("/admin/orders/:id", m.Authorize(h.AdminGetOrder, auth.RoleAdmin))
		authed.PUT("/admin/orders/:id/tracking", m.Authorize(h.AdminSetTracking, auth.RoleAdmin))
	}

	return r, nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// callerClaims pulls the authenticated caller off the request context.
func callerClaims(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	return claims, ok
}

// validID reports whether a caller-supplied id is uuid-shaped. Malformed ids
// short-circuit to a not-found response instead of reaching the database,
// which would reject them with a type error.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
