package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/addresses"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) CreateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var na addresses.NewAddress
	if err := c.ShouldBindJSON(&na); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(na); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name and address are required"})
		return
	}

	addr, err := h.addresses.Insert(c.Request.Context(), claims.Subject, na)
	if err != nil {
		slog.Error("error creating address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create address"})
		return
	}

	c.JSON(http.StatusOK, addr)
}

func (h *Handler) ListAddresses(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	list, err := h.addresses.List(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error listing addresses", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list addresses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": list})
}

func (h *Handler) SetDefaultAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	addressID := c.Param("id")
	if !validID(addressID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return
	}

	if err := h.addresses.SetDefault(c.Request.Context(), claims.Subject, addressID); err != nil {
		if errors.Is(err, addresses.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		slog.Error("error setting default address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to set default address"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Default address updated"})
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	addressID := c.Param("id")
	if !validID(addressID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return
	}

	if err := h.addresses.Delete(c.Request.Context(), claims.Subject, addressID); err != nil {
		if errors.Is(err, addresses.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		slog.Error("error deleting address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete address"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}
