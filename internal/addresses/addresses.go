package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("address not found")

type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type NewAddress struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
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

// Insert creates an address. When it is flagged default, the user's previous
// default is unset in the same transaction so at most one default survives.
func (c *Conf) Insert(ctx context.Context, userID string, na NewAddress) (Address, error) {
	var addr Address

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if na.IsDefault {
			if err := unsetDefault(ctx, tx, userID); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO shipping_addresses
				(id, user_id, name, phone, address, city, postal_code, country, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, user_id, name, phone, address, city, postal_code, country,
			          is_default, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			uuid.NewString(), userID, na.Name, na.Phone, na.Address, na.City,
			na.PostalCode, na.Country, na.IsDefault).
			Scan(&addr.ID, &addr.UserID, &addr.Name, &addr.Phone, &addr.Address,
				&addr.City, &addr.PostalCode, &addr.Country, &addr.IsDefault,
				&addr.CreatedAt, &addr.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert address: %w", err)
		}
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return addr, nil
}

// SetDefault marks one of the user's addresses as default, unsetting any other.
func (c *Conf) SetDefault(ctx context.Context, userID, addressID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if err := unsetDefault(ctx, tx, userID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE shipping_addresses SET is_default = TRUE, updated_at = NOW()
			 WHERE id = $1 AND user_id = $2`, addressID, userID)
		if err != nil {
			return fmt.Errorf("failed to set default address: %w", err)
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

// List returns the user's addresses, default first.
func (c *Conf) List(ctx context.Context, userID string) ([]Address, error) {
	query := `
		SELECT id, user_id, name, phone, address, city, postal_code, country,
		       is_default, created_at, updated_at
		FROM shipping_addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Address, &a.City,
			&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return out, nil
}

// Delete removes one of the user's addresses.
func (c *Conf) Delete(ctx context.Context, userID, addressID string) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM shipping_addresses WHERE id = $1 AND user_id = $2`, addressID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
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

func unsetDefault(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE shipping_addresses SET is_default = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND is_default = TRUE`, userID)
	if err != nil {
		return fmt.Errorf("failed to unset default address: %w", err)
	}
	return nil
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
