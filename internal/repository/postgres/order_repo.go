package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"shopfront-backend/internal/domain"
)

const (
	orderColumns = `id, order_number, user_id, items, shipping_address, subtotal, total_discount,
		coupon_id, coupon_code, coupon_discount, shipping_cost, total, payment_method, payment_status,
		payment_intent_id, payment_reference, status, notes, inventory_committed, paid_at, shipped_at,
		delivered_at, cancelled_at, cancellation_reason, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		$19, $20, $21, $22, $23, $24, $25, $26)`

	getOrderSQL          = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	// Nil arguments keep the stored value. The status guard makes the update a
	// compare-and-swap so two racing transitions cannot both win.
	updateOrderStatusSQL = `UPDATE orders SET
		status = $3,
		shipped_at = COALESCE($4, shipped_at),
		delivered_at = COALESCE($5, delivered_at),
		cancelled_at = COALESCE($6, cancelled_at),
		cancellation_reason = COALESCE($7, cancellation_reason),
		inventory_committed = COALESCE($8, inventory_committed),
		updated_at = NOW()
		WHERE id = $1 AND status = $2`

	markOrderPaidSQL = `UPDATE orders SET payment_status = 'PAID', paid_at = NOW(),
		payment_reference = COALESCE($2, payment_reference), updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'PAID'`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	updatePaymentStatusSQL = `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`
	setPaymentIntentSQL    = `UPDATE orders SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1`
	setInventorySQL        = `UPDATE orders SET inventory_committed = $2, updated_at = NOW() WHERE id = $1`

	listStalePendingSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status = 'PENDING' AND payment_method = $1 AND payment_status <> 'PAID' AND created_at < $2
		ORDER BY created_at
		LIMIT $3`

	orderStatsSQL = `SELECT status, payment_status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders GROUP BY status, payment_status`

	createHistorySQL = `INSERT INTO order_history (id, order_id, previous_status, new_status, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	getHistorySQL = `SELECT id, order_id, previous_status, new_status, reason, created_by, created_at
		FROM order_history WHERE order_id = $1 ORDER BY created_at, id`
)

type orderRepository struct {
	db *pgxpool.Pool
}

var _ domain.OrderRepository = (*orderRepository)(nil)

func NewOrderRepository(db *pgxpool.Pool) domain.OrderRepository {
	return &orderRepository{db: db}
}

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Items, &o.ShippingAddress, &o.Subtotal, &o.TotalDiscount,
		&o.CouponID, &o.CouponCode, &o.CouponDiscount, &o.ShippingCost, &o.Total, &o.PaymentMethod,
		&o.PaymentStatus, &o.PaymentIntentID, &o.PaymentReference, &o.Status, &o.Notes,
		&o.InventoryCommitted, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.CancellationReason, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	_, err := conn(ctx, r.db).Exec(ctx, createOrderSQL,
		o.ID, o.OrderNumber, o.UserID, o.Items, o.ShippingAddress, o.Subtotal, o.TotalDiscount,
		o.CouponID, o.CouponCode, o.CouponDiscount, o.ShippingCost, o.Total, o.PaymentMethod,
		o.PaymentStatus, o.PaymentIntentID, o.PaymentReference, o.Status, o.Notes,
		o.InventoryCommitted, o.PaidAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
		o.CancellationReason, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

func (r *orderRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, getOrderForUpdateSQL, id)
}

func (r *orderRepository) getOne(ctx context.Context, query, id string) (*domain.Order, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, id)
	if err != nil {
		return nil, notFound(err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// buildOrderFilter renders the WHERE clause of filter with positional args.
func buildOrderFilter(f domain.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *orderRepository) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	db := conn(ctx, r.db)
	where, args := buildOrderFilter(f)

	var total int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, n+1, n+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan orders")
	}
	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id, from string, upd domain.StatusUpdate) error {
	tag, err := conn(ctx, r.db).Exec(ctx, updateOrderStatusSQL,
		id, from, upd.Status, upd.ShippedAt, upd.DeliveredAt, upd.CancelledAt,
		upd.CancellationReason, upd.InventoryCommitted,
	)
	if err != nil {
		return errors.Wrap(notFound(err), "update order status")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, id string, reference *string) (bool, error) {
	db := conn(ctx, r.db)
	tag, err := db.Exec(ctx, markOrderPaidSQL, id, reference)
	if err != nil {
		return false, errors.Wrap(notFound(err), "mark order paid")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := db.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check order")
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *orderRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := conn(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(notFound(err), op)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id, status string) error {
	return r.exec(ctx, "update payment status", updatePaymentStatusSQL, id, status)
}

func (r *orderRepository) SetPaymentIntent(ctx context.Context, id, intentID string) error {
	return r.exec(ctx, "set payment intent", setPaymentIntentSQL, id, intentID)
}

func (r *orderRepository) SetInventoryCommitted(ctx context.Context, id string, committed bool) error {
	return r.exec(ctx, "set inventory committed", setInventorySQL, id, committed)
}

func (r *orderRepository) ListStalePending(ctx context.Context, method string, cutoff time.Time, limit int) ([]domain.Order, error) {
	rows, err := conn(ctx, r.db).Query(ctx, listStalePendingSQL, method, cutoff, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list stale orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *orderRepository) Stats(ctx context.Context) (*domain.OrderStats, error) {
	rows, err := conn(ctx, r.db).Query(ctx, orderStatsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "order stats")
	}
	defer rows.Close()

	stats := &domain.OrderStats{
		ByStatus:        map[string]int64{},
		ByPaymentStatus: map[string]int64{},
		PaidRevenue:     decimal.Zero,
		RefundedAmount:  decimal.Zero,
	}
	for rows.Next() {
		var (
			status, paymentStatus string
			count                 int64
			sum                   decimal.Decimal
		)
		if err := rows.Scan(&status, &paymentStatus, &count, &sum); err != nil {
			return nil, errors.Wrap(err, "scan order stats")
		}
		stats.TotalOrders += count
		stats.ByStatus[status] += count
		stats.ByPaymentStatus[paymentStatus] += count
		switch paymentStatus {
		case domain.PaymentStatusPaid:
			stats.PaidRevenue = stats.PaidRevenue.Add(sum)
		case domain.PaymentStatusRefunded:
			stats.RefundedAmount = stats.RefundedAmount.Add(sum)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate order stats")
	}
	return stats, nil
}

func (r *orderRepository) CreateHistory(ctx context.Context, h *domain.OrderHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	err := conn(ctx, r.db).QueryRow(ctx, createHistorySQL,
		h.ID, h.OrderID, h.PreviousStatus, h.NewStatus, h.Reason, h.CreatedBy,
	).Scan(&h.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order history")
	}
	return nil
}

func (r *orderRepository) GetHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	rows, err := conn(ctx, r.db).Query(ctx, getHistorySQL, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order history")
	}
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderHistory, error) {
		var h domain.OrderHistory
		err := row.Scan(&h.ID, &h.OrderID, &h.PreviousStatus, &h.NewStatus, &h.Reason, &h.CreatedBy, &h.CreatedAt)
		return h, err
	})
	return history, notFound(err)
}
