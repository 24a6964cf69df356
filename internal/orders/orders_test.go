package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

const (
	mockOrderID = "cccccccc-0000-0000-0000-000000000001"
	mockOwnerID = "11111111-1111-1111-1111-111111111111"
)

var orderCols = []string{
	"id", "user_id", "status", "total_price", "provider_ref",
	"shipping_name", "shipping_email", "shipping_phone", "shipping_address",
	"tracking_number", "created_at", "updated_at",
}

var itemCols = []string{"id", "order_id", "product_id", "size_id", "quantity", "unit_price"}

func newMockConf(t *testing.T) (*Conf, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c, err := NewConf(db)
	if err != nil {
		t.Fatalf("NewConf: %v", err)
	}
	return c, mock
}

func orderRow(status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderCols).
		AddRow(mockOrderID, mockOwnerID, status, int64(250), "",
			"", "", "", "", "", now, now)
}

// The owner filter must compare user_id as text: $2 is first compared against
// '' which fixes its inferred type, and a uuid = text comparison does not parse
// on Postgres.
func TestGetOrderOwnerFilterComparesAsText(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectQuery(`user_id::text = \$2`).
		WithArgs(mockOrderID, "").
		WillReturnRows(orderRow(StatusPending))
	mock.ExpectQuery(`FROM order_items`).
		WithArgs(mockOrderID).
		WillReturnRows(sqlmock.NewRows(itemCols))

	o, err := c.GetOrder(context.Background(), mockOrderID, "")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if o.ID != mockOrderID || o.TotalPrice != 250 {
		t.Errorf("order = %+v, want id %s total 250", o, mockOrderID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetOrderScopedToOwner(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectQuery(`user_id::text = \$2`).
		WithArgs(mockOrderID, "22222222-2222-2222-2222-222222222222").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := c.GetOrder(context.Background(), mockOrderID, "22222222-2222-2222-2222-222222222222")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkCompletedReportsTransition(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectExec(`UPDATE orders`).
		WithArgs(StatusCompleted, "pi_1", mockOrderID, StatusPending, StatusAwaitingPayment).
		WillReturnResult(sqlmock.NewResult(0, 1))

	transitioned, err := c.MarkCompleted(context.Background(), mockOrderID, "pi_1")
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if !transitioned {
		t.Error("first completion should report the transition")
	}

	// Replay: zero rows match, the order is already completed.
	mock.ExpectExec(`UPDATE orders`).
		WithArgs(StatusCompleted, "pi_1", mockOrderID, StatusPending, StatusAwaitingPayment).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM orders`).
		WithArgs(mockOrderID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusCompleted))

	transitioned, err = c.MarkCompleted(context.Background(), mockOrderID, "pi_1")
	if err != nil {
		t.Fatalf("replayed MarkCompleted: %v", err)
	}
	if transitioned {
		t.Error("replay should not report a transition")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCancelPaymentRevertsAwaitingPayment(t *testing.T) {
	c, mock := newMockConf(t)

	mock.ExpectExec(`UPDATE orders`).
		WithArgs(StatusPending, mockOrderID, StatusAwaitingPayment).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := c.CancelPayment(context.Background(), mockOrderID); err != nil {
		t.Fatalf("CancelPayment: %v", err)
	}

	// Already completed by a webhook: the CAS matches nothing and that is fine.
	mock.ExpectExec(`UPDATE orders`).
		WithArgs(StatusPending, mockOrderID, StatusAwaitingPayment).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := c.CancelPayment(context.Background(), mockOrderID); err != nil {
		t.Errorf("no-op CancelPayment: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
