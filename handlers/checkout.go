package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

// Checkout materializes the caller's active cart into a pending order. The cart
// is consumed in the same transaction, so posting twice yields a 409, not a
// duplicate order.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	order, err := h.orders.Materialize(c.Request.Context(), claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrEmptyCart):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		case errors.Is(err, orders.ErrNoActiveCart):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "No active cart to check out"})
		default:
			slog.Error("error materializing order", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.ERROR, err.Error()), slog.String(logkey.UserID, claims.Subject))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		}
		return
	}

	slog.Info("order created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, order.ID), slog.Int64("total_price", order.TotalPrice))
	c.JSON(http.StatusOK, order)
}

// CreatePaymentIntent asks the configured gateway to authorize a charge for the
// order's frozen total. The status CAS runs before the provider call so two
// concurrent requests cannot issue two intents for one order.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("id")
	if !validID(orderID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), orderID, claims.Subject)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error fetching order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	if order.ShippingName == "" || order.ShippingEmail == "" || order.ShippingAddress == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Shipping details must be set before payment"})
		return
	}

	if err := h.orders.BeginPayment(c.Request.Context(), orderID, claims.Subject); err != nil {
		switch {
		case errors.Is(err, orders.ErrWrongStatus):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Payment already in progress for this order"})
		case errors.Is(err, orders.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		case errors.Is(err, orders.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		default:
			slog.Error("error starting payment", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start payment"})
		}
		return
	}

	intent, err := payments.CreateIntentWithRetry(c.Request.Context(), h.gateway, order)
	if err != nil {
		slog.Error("error creating payment intent", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		// Revert the status CAS so the order stays payable once the provider
		// recovers.
		if cerr := h.orders.CancelPayment(c.Request.Context(), orderID); cerr != nil {
			slog.Error("error reverting order to pending", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, cerr.Error()))
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Payment provider is unavailable"})
		return
	}

	if err := h.orders.SetProviderRef(c.Request.Context(), orderID, intent.Ref); err != nil {
		slog.Error("error recording provider ref", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	slog.Info("payment intent created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, orderID), slog.String("provider", intent.Provider))
	c.JSON(http.StatusOK, intent)
}

// ApplyCoupon validates a coupon code passed by query param and previews the
// discounted total for one of the caller's orders.
func (h *Handler) ApplyCoupon(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code query param is required"})
		return
	}

	coupon, err := h.coupons.GetByCode(c.Request.Context(), code)
	if err != nil {
		slog.Error("coupon lookup failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Coupon is not valid"})
		return
	}

	resp := gin.H{"coupon": coupon}
	if orderID := c.Query("order_id"); orderID != "" {
		if !validID(orderID) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		order, err := h.orders.GetOrder(c.Request.Context(), orderID, claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		resp["total_price"] = order.TotalPrice
		resp["discounted_total"] = coupon.Apply(order.TotalPrice)
	}

	c.JSON(http.StatusOK, resp)
}
