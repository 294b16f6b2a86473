package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/cart"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Progress is the saga marker of one checkout session. The cart snapshot is
// kept with it so a resumed run does not depend on the cart still existing.
type Progress struct {
	SessionID    string
	EventID      string
	UserID       string
	Step         Step
	CustomerID   string
	OrderID      string
	Snapshot     cart.Snapshot
	DeliveryDate time.Time
	InvoiceRef   string
	LastError    string
	UpdatedAt    time.Time
}

type Store struct{ DB *pgxpool.Pool }

func (s *Store) Get(ctx context.Context, sessionID string) (*Progress, error) {
	var (
		p        Progress
		step     string
		delivery *time.Time
	)
	err := s.DB.QueryRow(ctx, `
		SELECT session_id, event_id, user_id, step, customer_id, order_id, snapshot,
		       delivery_date, invoice_ref, last_error, updated_at
		FROM fulfillments WHERE session_id=$1`, sessionID).
		Scan(&p.SessionID, &p.EventID, &p.UserID, &step, &p.CustomerID, &p.OrderID, &p.Snapshot,
			&delivery, &p.InvoiceRef, &p.LastError, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoProgress
	}
	if err != nil {
		return nil, err
	}
	p.Step = Step(step)
	if delivery != nil {
		p.DeliveryDate = *delivery
	}
	return &p, nil
}

// Save upserts the marker. The stored step never moves backwards.
func (s *Store) Save(ctx context.Context, p *Progress) error {
	var delivery *time.Time
	if !p.DeliveryDate.IsZero() {
		delivery = &p.DeliveryDate
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO fulfillments(session_id, event_id, user_id, step, customer_id, order_id, snapshot,
		                         delivery_date, invoice_ref, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			event_id=EXCLUDED.event_id,
			step=EXCLUDED.step,
			customer_id=EXCLUDED.customer_id,
			order_id=EXCLUDED.order_id,
			snapshot=EXCLUDED.snapshot,
			delivery_date=EXCLUDED.delivery_date,
			invoice_ref=EXCLUDED.invoice_ref,
			last_error=EXCLUDED.last_error,
			updated_at=now()`,
		p.SessionID, p.EventID, p.UserID, string(p.Step), p.CustomerID, p.OrderID, p.Snapshot,
		delivery, p.InvoiceRef, p.LastError)
	return err
}
