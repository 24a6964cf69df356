package wishlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("wishlist item not found")

// RecentlyViewedLimit bounds how many products are kept per user.
const RecentlyViewedLimit = 10

type Item struct {
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Add puts a product on the user's wishlist. Re-adding is a no-op.
func (c *Conf) Add(ctx context.Context, userID, productID string) error {
	query := `
		INSERT INTO wishlist_items (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return nil
}

// Remove drops a product from the user's wishlist.
func (c *Conf) Remove(ctx context.Context, userID, productID string) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's wishlist, newest first.
func (c *Conf) List(ctx context.Context, userID string) ([]Item, error) {
	query := `
		SELECT product_id, created_at
		FROM wishlist_items
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return c.queryItems(ctx, query, userID)
}

// RecordView upserts a recently-viewed entry and trims the per-user window.
func (c *Conf) RecordView(ctx context.Context, userID, productID string) error {
	queryUpsert := `
		INSERT INTO recently_viewed (user_id, product_id, viewed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE SET viewed_at = NOW()
	`
	if _, err := c.db.ExecContext(ctx, queryUpsert, userID, productID); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}

	queryTrim := `
		DELETE FROM recently_viewed
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM recently_viewed
			WHERE user_id = $1
			ORDER BY viewed_at DESC
			LIMIT $2
		)
	`
	if _, err := c.db.ExecContext(ctx, queryTrim, userID, RecentlyViewedLimit); err != nil {
		return fmt.Errorf("failed to trim recently viewed: %w", err)
	}
	return nil
}

// RecentlyViewed returns the user's recently viewed products, newest first.
func (c *Conf) RecentlyViewed(ctx context.Context, userID string) ([]Item, error) {
	query := `
		SELECT product_id, viewed_at
		FROM recently_viewed
		WHERE user_id = $1
		ORDER BY viewed_at DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, userID, RecentlyViewedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recently viewed: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (c *Conf) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return out, nil
}
