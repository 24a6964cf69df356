package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/orders"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) AdminListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.orders.ListAll(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		slog.Error("error listing orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) AdminGetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	orderID := c.Param("id")
	if !validID(orderID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	// Empty owner skips the ownership scope; the admin role gate already ran.
	order, err := h.orders.GetOrder(c.Request.Context(), orderID, "")
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

type trackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// AdminSetTracking is the only path that writes a tracking number; the
// user-facing shipping update deliberately has no such field.
func (h *Handler) AdminSetTracking(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	orderID := c.Param("id")
	if !validID(orderID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	var req trackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tracking_number is required"})
		return
	}

	if err := h.orders.SetTracking(c.Request.Context(), orderID, req.TrackingNumber); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error setting tracking number", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to set tracking number"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tracking number updated"})
}
