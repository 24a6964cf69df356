package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("cart or line item not found")
	ErrSizeNotFound    = errors.New("size not found for product")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrQuantityCap     = fmt.Errorf("quantity exceeds cap of %d per line", MaxQuantityPerLine)
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// AddItem adds one unit of (product, size) to the user's active cart, creating
// the cart if needed. A second add of the same pair increments the existing line
// instead of creating a new one; the unique index on (cart_id, product_id,
// size_id) plus the upsert keeps concurrent adds from splitting into two lines.
func (c *Conf) AddItem(ctx context.Context, userID, productID, sizeID string) (CartItem, error) {
	var item CartItem

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		querySize := `
			SELECT 1
			FROM sizes
			WHERE id = $1 AND product_id = $2
		`
		var one int
		err := tx.QueryRowContext(ctx, querySize, sizeID, productID).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSizeNotFound
			}
			return fmt.Errorf("failed to query size: %w", err)
		}

		cartID, err := activeCartID(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		queryUpsert := `
			INSERT INTO cart_items (cart_id, product_id, size_id, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, 1, NOW(), NOW())
			ON CONFLICT (cart_id, product_id, size_id)
			DO UPDATE SET quantity = cart_items.quantity + 1, updated_at = NOW()
			RETURNING id, product_id, size_id, quantity
		`
		err = tx.QueryRowContext(ctx, queryUpsert, cartID, productID, sizeID).
			Scan(&item.ID, &item.ProductID, &item.SizeID, &item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to upsert cart item: %w", err)
		}

		if item.Quantity > MaxQuantityPerLine {
			return ErrQuantityCap
		}
		return nil
	})
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

// UpdateQuantity overwrites the quantity of a line in the user's active cart.
// Quantities below 1 are rejected before any write; removal goes through
// RemoveItem.
func (c *Conf) UpdateQuantity(ctx context.Context, userID string, itemID, newQuantity int) error {
	if newQuantity < 1 {
		return ErrInvalidQuantity
	}
	if newQuantity > MaxQuantityPerLine {
		return ErrQuantityCap
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID, false)
		if err != nil {
			return err
		}

		queryUpdate := `
			UPDATE cart_items
			SET quantity = $1, updated_at = NOW()
			WHERE id = $2 AND cart_id = $3
		`
		res, err := tx.ExecContext(ctx, queryUpdate, newQuantity, itemID, cartID)
		if err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RemoveItem deletes a line from the user's active cart.
func (c *Conf) RemoveItem(ctx context.Context, userID string, itemID int) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID, false)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
		if err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetActiveCartItems returns the lines of the user's active cart.
func (c *Conf) GetActiveCartItems(ctx context.Context, userID string) (*CartResponse, error) {
	var cartID int
	var items []CartItem

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		id, err := activeCartID(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		cartID = id

		queryItems := `
			SELECT ci.id, ci.product_id, ci.size_id, ci.quantity
			FROM cart_items ci
			WHERE ci.cart_id = $1
			ORDER BY ci.id
		`
		rows, err := tx.QueryContext(ctx, queryItems, cartID)
		if err != nil {
			return fmt.Errorf("failed to query cart items: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var item CartItem
			if err := rows.Scan(&item.ID, &item.ProductID, &item.SizeID, &item.Quantity); err != nil {
				return fmt.Errorf("failed to scan cart item: %w", err)
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating cart items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CartResponse{CartID: cartID, Items: items}, nil
}

// activeCartID locks the user's active cart row and returns its id. When create
// is set and no active cart exists, a fresh one is inserted.
func activeCartID(ctx context.Context, tx *sql.Tx, userID string, create bool) (int, error) {
	var cartID int
	queryActiveCart := `
		SELECT id
		FROM cart
		WHERE user_id = $1 AND status = 'active'
		FOR UPDATE
	`
	err := tx.QueryRowContext(ctx, queryActiveCart, userID).Scan(&cartID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to query active cart: %w", err)
		}
		if !create {
			return 0, ErrNotFound
		}
		queryCreateCart := `
			INSERT INTO cart (user_id, status, created_at, updated_at)
			VALUES ($1, 'active', NOW(), NOW())
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, queryCreateCart, userID).Scan(&cartID); err != nil {
			return 0, fmt.Errorf("failed to create new cart: %w", err)
		}
	}
	return cartID, nil
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
