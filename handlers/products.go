package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/products"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) ListProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.products.ListProducts(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		slog.Error("error listing products", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": list})
}

func (h *Handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("id")
	if !validID(productID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	product, err := h.products.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error fetching product", slog.String(logkey.TraceID, traceId),
			slog.String("product_id", productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) ListSizes(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("id")
	if !validID(productID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	sizes, err := h.products.ListSizes(c.Request.Context(), productID)
	if err != nil {
		slog.Error("error listing sizes", slog.String(logkey.TraceID, traceId),
			slog.String("product_id", productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sizes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sizes": sizes})
}

func (h *Handler) CreateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId),
			slog.Int64("size_received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large"})
		return
	}

	var np products.NewProduct
	if err := c.ShouldBindJSON(&np); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(np); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name and a positive price are required"})
		return
	}

	product, err := h.products.InsertProduct(c.Request.Context(), np)
	if err != nil {
		slog.Error("error inserting product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product creation failed"})
		return
	}

	c.JSON(http.StatusOK, product)
}
