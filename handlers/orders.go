package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/orders"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) ListMyOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	list, err := h.orders.ListByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error listing orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
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

	c.JSON(http.StatusOK, order)
}

// UpdateShipping sets the delivery fields on one of the caller's orders. The
// tracking number is not accepted here; only the admin path writes it.
func (h *Handler) UpdateShipping(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("id")
	if !validID(orderID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	var details orders.ShippingDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(details); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "shipping_name, shipping_email and shipping_address are required"})
		return
	}

	err := h.orders.UpdateShipping(c.Request.Context(), orderID, claims.Subject, details)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, orders.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		default:
			slog.Error("error updating shipping details", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update shipping details"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Shipping details updated"})
}
