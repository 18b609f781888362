package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
)

var (
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrOrderStatusChanged = errors.New("order status changed concurrently")
)

const orderColumns = `id, provider_order_id, receipt, amount_paise, currency, status,
			provider_payment_id, last_event_id, failure_reason, created_at, updated_at`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			provider_order_id, receipt, amount_paise, currency, status,
			provider_payment_id, last_event_id, failure_reason, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.ProviderOrderID,
		order.Receipt,
		order.AmountPaise,
		order.Currency,
		order.Status,
		nullableStringValue(order.ProviderPaymentID),
		nullableStringValue(order.LastEventID),
		nullableStringValue(order.FailureReason),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

// UpdateStatus writes order only while the stored status still equals
// fromStatus. ErrOrderStatusChanged means another writer got there first, or
// the row is gone; callers reload to tell the two apart.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *entity.Order, fromStatus string) error {
	query := `
		UPDATE orders SET
			status = ?,
			provider_payment_id = ?,
			last_event_id = ?,
			failure_reason = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Status,
		nullableStringValue(order.ProviderPaymentID),
		nullableStringValue(order.LastEventID),
		nullableStringValue(order.FailureReason),
		order.UpdatedAt,
		order.ID,
		fromStatus,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderStatusChanged
	}
	return nil
}

// FindByProviderOrderID returns nil, nil when no row matches.
func (r *OrderRepository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE provider_order_id = ? LIMIT 1`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, providerOrderID), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return order, nil
}

// FindByProviderPaymentID is used for refund events, which carry only the
// payment id.
func (r *OrderRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE provider_payment_id = ? ORDER BY id DESC LIMIT 1`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, providerPaymentID), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return order, nil
}

// ListForReconcile returns open orders nobody has touched since before.
func (r *OrderRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN (?, ?)
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment, before, limit)
}

// ListExpiredPending returns open orders created at or before cutoff.
func (r *OrderRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN (?, ?)
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment, cutoff, limit)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var providerPaymentID sql.NullString
	var lastEventID sql.NullString
	var failureReason sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.ProviderOrderID,
		&order.Receipt,
		&order.AmountPaise,
		&order.Currency,
		&order.Status,
		&providerPaymentID,
		&lastEventID,
		&failureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.ProviderPaymentID = stringPtrFromNull(providerPaymentID)
	order.LastEventID = stringPtrFromNull(lastEventID)
	order.FailureReason = stringPtrFromNull(failureReason)
	return nil
}
