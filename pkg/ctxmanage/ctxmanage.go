package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIdKey is the gin context key under which the per-request trace id is stored.
const TraceIdKey = "trace_id"

// SetTraceIdOfRequest generates a trace id for the request and stores it on the
// gin context. Called once by the logging middleware.
func SetTraceIdOfRequest(c *gin.Context) string {
	traceId := uuid.NewString()
	c.Set(TraceIdKey, traceId)
	return traceId
}

// GetTraceIdOfRequest returns the trace id set by the logging middleware. If the
// middleware did not run (e.g. the webhook route), a fresh id is generated so log
// lines are still correlatable.
func GetTraceIdOfRequest(c *gin.Context) string {
	traceId, ok := c.Value(TraceIdKey).(string)
	if !ok {
		return SetTraceIdOfRequest(c)
	}
	return traceId
}
