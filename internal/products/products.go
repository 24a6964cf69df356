package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("product not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// InsertProduct creates a product and its size variants in one transaction.
func (c *Conf) InsertProduct(ctx context.Context, np NewProduct) (Product, error) {
	var product Product

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		queryInsert := `
			INSERT INTO products (id, name, description, category, price, image_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, name, description, category, price, image_url, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, queryInsert,
			uuid.NewString(), np.Name, np.Description, np.Category, np.Price, np.ImageURL).
			Scan(&product.ID, &product.Name, &product.Description, &product.Category,
				&product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}

		queryInsertSize := `
			INSERT INTO sizes (id, product_id, label, quantity)
			VALUES ($1, $2, $3, $4)
		`
		for _, s := range np.Sizes {
			_, err := tx.ExecContext(ctx, queryInsertSize, uuid.NewString(), product.ID, s.Label, s.Quantity)
			if err != nil {
				return fmt.Errorf("failed to insert size %q: %w", s.Label, err)
			}
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// GetProductByID fetches one product. Returns ErrNotFound when the id does not
// resolve.
func (c *Conf) GetProductByID(ctx context.Context, productID string) (Product, error) {
	query := `
		SELECT id, name, description, category, price, image_url, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var p Product
	err := c.db.QueryRowContext(ctx, query, productID).
		Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

// ListProducts returns a catalog page, optionally filtered by category.
func (c *Conf) ListProducts(ctx context.Context, category string, limit, offset int) ([]Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, name, description, category, price, image_url, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := c.db.QueryContext(ctx, query, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price,
			&p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

// ListSizes returns the size variants of a product for availability display.
func (c *Conf) ListSizes(ctx context.Context, productID string) ([]Size, error) {
	query := `
		SELECT id, product_id, label, quantity
		FROM sizes
		WHERE product_id = $1
		ORDER BY label
	`
	rows, err := c.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sizes: %w", err)
	}
	defer rows.Close()

	var out []Size
	for rows.Next() {
		var s Size
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Label, &s.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan size: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sizes: %w", err)
	}
	return out, nil
}

// ListAllForSitemap returns every product id and update time.
func (c *Conf) ListAllForSitemap(ctx context.Context) ([]Product, error) {
	query := `SELECT id, name, updated_at FROM products ORDER BY created_at`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
