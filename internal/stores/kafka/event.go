package kafka

import "time"

const TopicOrderPaid = `storefront.order-paid`

// OrderPaidEvent is published once per order item when a payment notification is
// reconciled, keyed by order id.
type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	SizeId    string    `json:"size_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
