package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrNoActiveCart = errors.New("no active cart")
	ErrUnauthorized = errors.New("caller does not own the order")
	// ErrWrongStatus is returned when a status transition loses the
	// compare-and-swap, e.g. two concurrent intent creations for one order.
	ErrWrongStatus = errors.New("order is not in the expected status")
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

// Materialize converts the user's active cart into a pending order in a single
// transaction: the cart row is locked, each line's current product price is
// snapshotted into an order item, the total is computed from that snapshot, and
// the cart is marked checked_out so the same cart cannot produce a second order.
// Shipping fields start blank; the caller must populate them before payment.
func (c *Conf) Materialize(ctx context.Context, userID string) (Order, error) {
	var order Order

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var cartID int
		queryActiveCart := `
			SELECT id
			FROM cart
			WHERE user_id = $1 AND status = 'active'
			FOR UPDATE
		`
		err := tx.QueryRowContext(ctx, queryActiveCart, userID).Scan(&cartID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoActiveCart
			}
			return fmt.Errorf("failed to query active cart: %w", err)
		}

		queryLines := `
			SELECT ci.product_id, ci.size_id, ci.quantity, p.price
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.cart_id = $1
			ORDER BY ci.id
		`
		rows, err := tx.QueryContext(ctx, queryLines, cartID)
		if err != nil {
			return fmt.Errorf("failed to query cart lines: %w", err)
		}
		defer rows.Close()

		var items []OrderItem
		for rows.Next() {
			var it OrderItem
			if err := rows.Scan(&it.ProductID, &it.SizeID, &it.Quantity, &it.UnitPrice); err != nil {
				return fmt.Errorf("failed to scan cart line: %w", err)
			}
			items = append(items, it)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating cart lines: %w", err)
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		orderID := uuid.NewString()
		total := Total(items)

		queryInsertOrder := `
			INSERT INTO orders (id, user_id, status, total_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, status, total_price, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, queryInsertOrder, orderID, userID, StatusPending, total).
			Scan(&order.ID, &order.UserID, &order.Status, &order.TotalPrice, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryInsertItem := `
			INSERT INTO order_items (order_id, product_id, size_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		for i := range items {
			items[i].OrderID = orderID
			err := tx.QueryRowContext(ctx, queryInsertItem,
				orderID, items[i].ProductID, items[i].SizeID, items[i].Quantity, items[i].UnitPrice).
				Scan(&items[i].ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		order.Items = items

		queryCheckout := `
			UPDATE cart
			SET status = 'checked_out', updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, queryCheckout, cartID); err != nil {
			return fmt.Errorf("failed to mark cart checked out: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// GetOrder fetches an order with its items. When ownerID is non-empty the lookup
// is scoped to that owner and a mismatch reads as ErrNotFound, so order ids
// cannot be probed across users. The owner comparison is done as text: the
// first use of $2 against '' fixes its inferred type, and uuid = text does not
// parse.
func (c *Conf) GetOrder(ctx context.Context, orderID, ownerID string) (Order, error) {
	queryOrder := `
		SELECT id, user_id, status, total_price, provider_ref,
		       shipping_name, shipping_email, shipping_phone, shipping_address,
		       tracking_number, created_at, updated_at
		FROM orders
		WHERE id = $1 AND ($2 = '' OR user_id::text = $2)
	`
	var o Order
	err := c.db.QueryRowContext(ctx, queryOrder, orderID, ownerID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.ProviderRef,
			&o.ShippingName, &o.ShippingEmail, &o.ShippingPhone, &o.ShippingAddress,
			&o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := c.listItems(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// ListByUser returns a user's orders, newest first, without item details.
func (c *Conf) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	query := `
		SELECT id, user_id, status, total_price, tracking_number, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice,
			&o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return out, nil
}

// ListAll returns a page of orders across all users for the admin view.
func (c *Conf) ListAll(ctx context.Context, status string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, user_id, status, total_price, tracking_number, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := c.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice,
			&o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return out, nil
}

// UpdateShipping writes the user-settable delivery fields. Ownership is enforced
// in the same statement as the update; a zero-row result on an existing order
// means the caller does not own it.
func (c *Conf) UpdateShipping(ctx context.Context, orderID, callerUserID string, d ShippingDetails) error {
	if d.Name == "" || d.Email == "" || d.Address == "" {
		return fmt.Errorf("shipping name, email and address are required")
	}

	queryUpdate := `
		UPDATE orders
		SET shipping_name = $1, shipping_email = $2, shipping_phone = $3,
		    shipping_address = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
	`
	res, err := c.db.ExecContext(ctx, queryUpdate,
		d.Name, d.Email, d.Phone, d.Address, orderID, callerUserID)
	if err != nil {
		return fmt.Errorf("failed to update shipping details: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		var one int
		err := c.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = $1`, orderID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return ErrUnauthorized
	}
	return nil
}

// BeginPayment transitions pending -> awaiting_payment for the caller's order.
// The compare-and-swap on status makes concurrent intent creations for one
// order lose cleanly with ErrWrongStatus.
func (c *Conf) BeginPayment(ctx context.Context, orderID, callerUserID string) error {
	queryCAS := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND status = $4
	`
	res, err := c.db.ExecContext(ctx, queryCAS,
		StatusAwaitingPayment, orderID, callerUserID, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to begin payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		o, err := c.GetOrder(ctx, orderID, "")
		if err != nil {
			return err
		}
		if o.UserID != callerUserID {
			return ErrUnauthorized
		}
		return ErrWrongStatus
	}
	return nil
}

// SetProviderRef records the provider's identifier for the charge attempt once
// the intent exists.
func (c *Conf) SetProviderRef(ctx context.Context, orderID, providerRef string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE orders SET provider_ref = $1, updated_at = NOW() WHERE id = $2`,
		providerRef, orderID)
	if err != nil {
		return fmt.Errorf("failed to set provider ref: %w", err)
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

// MarkCompleted sets an order to completed after a verified payment
// notification. The returned bool reports whether this call performed the
// transition: an already-completed order matches zero rows and reads as
// (false, nil), so replayed notifications succeed without re-firing the
// completion side effects.
func (c *Conf) MarkCompleted(ctx context.Context, orderID, providerRef string) (bool, error) {
	queryComplete := `
		UPDATE orders
		SET status = $1, provider_ref = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`
	res, err := c.db.ExecContext(ctx, queryComplete,
		StatusCompleted, providerRef, orderID, StatusPending, StatusAwaitingPayment)
	if err != nil {
		return false, fmt.Errorf("failed to mark order completed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		var status string
		err := c.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, ErrNotFound
			}
			return false, fmt.Errorf("failed to query order status: %w", err)
		}
		if status != StatusCompleted {
			return false, ErrWrongStatus
		}
		return false, nil
	}
	return true, nil
}

// CancelPayment reverts awaiting_payment -> pending so the order can be paid
// again after the provider call fails. If a webhook completed the order in the
// meantime the CAS matches nothing and the revert is a no-op.
func (c *Conf) CancelPayment(ctx context.Context, orderID string) error {
	queryRevert := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	_, err := c.db.ExecContext(ctx, queryRevert, StatusPending, orderID, StatusAwaitingPayment)
	if err != nil {
		return fmt.Errorf("failed to revert order to pending: %w", err)
	}
	return nil
}

// SetTracking records the carrier-assigned tracking number. Admin-only path.
func (c *Conf) SetTracking(ctx context.Context, orderID, trackingNumber string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE orders SET tracking_number = $1, updated_at = NOW() WHERE id = $2`,
		trackingNumber, orderID)
	if err != nil {
		return fmt.Errorf("failed to set tracking number: %w", err)
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

func (c *Conf) listItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, size_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SizeID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
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
