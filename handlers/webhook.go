package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/stores/kafka"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

const maxWebhookBodyBytes = int64(65536)

// Webhook receives asynchronous payment notifications. The payload is
// authenticated by the gateway's signature check before anything is read from
// it; delivery is at-least-once, and MarkCompleted absorbs replays.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Bad payload"})
		return
	}

	notification, err := h.gateway.VerifyNotification(payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, payments.ErrBadSignature) {
			slog.Error("webhook signature rejected", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
			return
		}
		slog.Error("webhook payload rejected", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Bad payload"})
		return
	}

	if notification.OrderID == "" || !notification.Completed {
		slog.Info("webhook event ignored", slog.String(logkey.TraceID, traceId))
		c.JSON(http.StatusOK, gin.H{"message": "Event not handled"})
		return
	}
	if !validID(notification.OrderID) {
		slog.Error("webhook for malformed order id", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	transitioned, err := h.orders.MarkCompleted(c.Request.Context(), notification.OrderID, notification.ProviderRef)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			slog.Error("webhook for unknown order", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, notification.OrderID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("failed to complete order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, notification.OrderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}
	if !transitioned {
		// Replayed delivery; the side effects already ran for this order.
		slog.Info("webhook replay absorbed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, notification.OrderID))
		c.Status(http.StatusOK)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), notification.OrderID, "")
	if err != nil {
		slog.Error("failed to load completed order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.Status(http.StatusOK)
		return
	}

	h.publishOrderPaid(traceId, order)

	if order.ShippingEmail != "" {
		if err := h.mailer.SendOrderConfirmation(order.ShippingEmail, order.ID); err != nil {
			slog.Error("failed to send confirmation email", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}

	slog.Info("order completed", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, order.ID))
	c.Status(http.StatusOK)
}

func (h *Handler) publishOrderPaid(traceId string, order orders.Order) {
	for _, item := range order.Items {
		event, err := json.Marshal(kafka.OrderPaidEvent{
			OrderId:   order.ID,
			ProductId: item.ProductID,
			SizeId:    item.SizeID,
			Quantity:  item.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal order paid event", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
		if err := h.events.ProduceMessage(kafka.TopicOrderPaid, []byte(order.ID), event); err != nil {
			slog.Error("failed to produce order paid event", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
	}
}
