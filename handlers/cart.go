package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/cart"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	SizeID    string `json:"size_id" validate:"required"`
}

func (h *Handler) AddToCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "product_id and size_id are required"})
		return
	}
	if !validID(req.ProductID) || !validID(req.SizeID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Size not found for product"})
		return
	}

	item, err := h.cart.AddItem(c.Request.Context(), claims.Subject, req.ProductID, req.SizeID)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrSizeNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Size not found for product"})
		case errors.Is(err, cart.ErrQuantityCap):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.Error("error adding product to cart", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.ERROR, err.Error()), slog.String("product_id", req.ProductID))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to add product to cart"})
		}
		return
	}

	slog.Info("product added to cart", slog.String(logkey.TraceID, traceId),
		slog.String("product_id", item.ProductID), slog.Int("quantity", item.Quantity),
		slog.String(logkey.UserID, claims.Subject))
	c.JSON(http.StatusOK, item)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item id"})
		return
	}

	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err = h.cart.UpdateQuantity(c.Request.Context(), claims.Subject, itemID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrQuantityCap):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, cart.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		default:
			slog.Error("error updating cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart item"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item updated"})
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item id"})
		return
	}

	if err := h.cart.RemoveItem(c.Request.Context(), claims.Subject, itemID); err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove cart item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item removed"})
}

func (h *Handler) GetCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.cart.GetActiveCartItems(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			// No cart yet reads as an empty one.
			c.JSON(http.StatusOK, cart.CartResponse{})
			return
		}
		slog.Error("error fetching cart", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
