package cart

// MaxQuantityPerLine caps how many units of one (product, size) a cart line may
// hold.
const MaxQuantityPerLine = 20

// CartItem is one line of a user's active cart.
type CartItem struct {
	ID        int    `json:"id"`
	ProductID string `json:"product_id"`
	SizeID    string `json:"size_id"`
	Quantity  int    `json:"quantity"`
}

type CartResponse struct {
	CartID int        `json:"cart_id"`
	Items  []CartItem `json:"items"`
}
