package orders

import "time"

const (
	StatusPending         = "pending"
	StatusAwaitingPayment = "awaiting_payment"
	StatusCompleted       = "completed"
)

// Order is a checkout attempt materialized from a cart. TotalPrice is frozen at
// materialization time and is what gets charged.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Status          string      `json:"status"`
	TotalPrice      int64       `json:"total_price"`
	ProviderRef     string      `json:"provider_ref,omitempty"`
	ShippingName    string      `json:"shipping_name"`
	ShippingEmail   string      `json:"shipping_email"`
	ShippingPhone   string      `json:"shipping_phone"`
	ShippingAddress string      `json:"shipping_address"`
	TrackingNumber  string      `json:"tracking_number"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem snapshots one cart line with the unit price captured at
// materialization.
type OrderItem struct {
	ID        int    `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	SizeID    string `json:"size_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// ShippingDetails is the user-settable part of an order's delivery info. The
// tracking number is deliberately absent: it is carrier-assigned and only the
// admin path may write it.
type ShippingDetails struct {
	Name    string `json:"shipping_name" validate:"required"`
	Email   string `json:"shipping_email" validate:"required,email"`
	Phone   string `json:"shipping_phone"`
	Address string `json:"shipping_address" validate:"required"`
}

// Total computes the order total from its item snapshot.
func Total(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}
