package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// CreateOrder is idempotent via session_id: when the session already has an
// order, o is filled from the stored row and existed is true.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) (existed bool, err error) {
	if found, err := r.loadBySession(ctx, o); found || err != nil {
		return found, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	ct, err := tx.Exec(ctx, `
		INSERT INTO orders(id, session_id, user_id, status, total_cents, currency, shipping_address, order_date, delivery_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO NOTHING`,
		o.ID, o.SessionID, o.UserID, string(o.Status), o.TotalCents, o.Currency, o.ShippingAddress, o.OrderDate, o.DeliveryDate)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// lost a race with a concurrent delivery of the same session
		_ = tx.Rollback(ctx)
		return r.loadBySession(ctx, o)
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, qty, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, it.ProductID, it.Name, it.Qty, it.UnitPriceCents); err != nil {
			return false, fmt.Errorf("insert order item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Repo) loadBySession(ctx context.Context, o *Order) (bool, error) {
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id::text, user_id, status, total_cents, currency, shipping_address, order_date, delivery_date
		FROM orders WHERE session_id=$1`, o.SessionID).
		Scan(&o.ID, &o.UserID, &status, &o.TotalCents, &o.Currency, &o.ShippingAddress, &o.OrderDate, &o.DeliveryDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	o.Status = Status(status)
	return true, nil
}

// MarkCompleted moves a pending order to completed; completing twice is a no-op.
func (r *Repo) MarkCompleted(ctx context.Context, orderID string) error {
	var current string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if Status(current) == StatusCompleted {
		return nil
	}
	if !CanTransition(Status(current), StatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, StatusCompleted)
	}
	_, err = r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`, orderID, string(StatusCompleted), current)
	return err
}

// CreatePayment is idempotent via session_id like CreateOrder.
func (r *Repo) CreatePayment(ctx context.Context, p *Payment) (existed bool, err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, session_id, order_id, user_id, payment_intent_id, payment_method, amount_cents, currency, address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING`,
		p.ID, p.SessionID, p.OrderID, p.UserID, p.PaymentIntentID, p.PaymentMethod, p.AmountCents, p.Currency, p.Address, string(p.Status))
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		stored, err := r.PaymentBySession(ctx, p.SessionID)
		if err != nil {
			return false, err
		}
		*p = *stored
		return true, nil
	}
	return false, nil
}

const paymentColumns = `id::text, session_id, order_id::text, user_id, payment_intent_id, payment_method,
	amount_cents, currency, address, status, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p      Payment
		status string
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.OrderID, &p.UserID, &p.PaymentIntentID, &p.PaymentMethod,
		&p.AmountCents, &p.Currency, &p.Address, &status, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = PaymentStatus(status)
	return &p, nil
}

func (r *Repo) PaymentBySession(ctx context.Context, sessionID string) (*Payment, error) {
	p, err := scanPayment(r.DB.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE session_id=$1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// ListPayments returns the user's payments, newest first; never nil.
func (r *Repo) ListPayments(ctx context.Context, userID string) ([]Payment, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Items loads the frozen line items of an order.
func (r *Repo) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, qty, unit_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Qty, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
