package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"storefront/internal/auth"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type Mid struct {
	keys *auth.Keys
}

func NewMid(keys *auth.Keys) (*Mid, error) {
	if keys == nil {
		return nil, fmt.Errorf("auth keys are nil")
	}
	return &Mid{keys: keys}, nil
}

// Logger assigns a trace id to every request and logs method, path, status and
// latency when the handler chain finishes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.SetTraceIdOfRequest(c)
		start := time.Now()

		c.Next()

		slog.Info("request completed",
			slog.String(logkey.TraceID, traceId),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}

// Authentication verifies the bearer token and stores the claims on the request
// context for downstream handlers.
func (m *Mid) Authentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)

		authHeader := c.Request.Header.Get("Authorization")
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			slog.Error("missing or malformed authorization header", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := m.keys.ValidateToken(parts[1])
		if err != nil {
			slog.Error("token validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), auth.ClaimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Authorize wraps a handler so it only runs when the caller carries one of the
// given roles.
func (m *Mid) Authorize(next gin.HandlerFunc, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)

		claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		if !ok {
			slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				next(c)
				return
			}
		}

		slog.Error("caller lacks required role", slog.String(logkey.TraceID, traceId), slog.String("role", claims.Role))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}
