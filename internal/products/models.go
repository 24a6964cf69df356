package products

import "time"

// Product is a catalog entry. Price is in the smallest currency unit.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       int64     `json:"price"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Size is a product variant with its available quantity. Quantity is read for
// availability display; no flow decrements it.
type Size struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Label     string `json:"label"`
	Quantity  int    `json:"quantity"`
}

type NewProduct struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       int64     `json:"price" validate:"required,min=1"`
	ImageURL    string    `json:"image_url"`
	Sizes       []NewSize `json:"sizes" validate:"dive"`
}

type NewSize struct {
	Label    string `json:"label" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=0"`
}
