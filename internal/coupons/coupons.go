package coupons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("coupon not found")
	ErrExpired  = errors.New("coupon is expired or inactive")
)

const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

// Coupon discounts an order total. For percent kind, Value is the percentage
// (0-100); for fixed kind, Value is an amount in the smallest currency unit.
type Coupon struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	Value     int64      `json:"value"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Apply returns the discounted total, never below zero. Percentage math goes
// through decimal so 33% of 999 cents rounds half-up instead of truncating.
func (c Coupon) Apply(total int64) int64 {
	switch c.Kind {
	case KindPercent:
		discount := decimal.NewFromInt(total).
			Mul(decimal.NewFromInt(c.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0)
		total -= discount.IntPart()
	case KindFixed:
		total -= c.Value
	}
	if total < 0 {
		return 0
	}
	return total
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

// GetByCode looks up a coupon and checks it is usable right now.
func (c *Conf) GetByCode(ctx context.Context, code string) (Coupon, error) {
	query := `
		SELECT id, code, kind, value, active, expires_at
		FROM coupons
		WHERE code = $1
	`
	var cp Coupon
	err := c.db.QueryRowContext(ctx, query, code).
		Scan(&cp.ID, &cp.Code, &cp.Kind, &cp.Value, &cp.Active, &cp.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("failed to query coupon: %w", err)
	}

	if !cp.Active || (cp.ExpiresAt != nil && cp.ExpiresAt.Before(time.Now())) {
		return Coupon{}, ErrExpired
	}
	return cp, nil
}
