package logkey

// Common keys for structured log attributes so queries over logs stay consistent.
const (
	TraceID = "trace_id"
	ERROR   = "error"
	UserID  = "user_id"
	OrderID = "order_id"
)
