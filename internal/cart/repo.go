package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrProductNotFound = errors.New("cart references a missing product")
	ErrInvalidPrice    = errors.New("cart references a product with a negative price")
)

type Repo struct{ DB *pgxpool.Pool }

// Snapshot loads the user's cart joined with current product rows, in the
// order the items were added.
func (r *Repo) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	var one int
	err := r.DB.QueryRow(ctx, `SELECT 1 FROM carts WHERE user_id=$1`, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT ci.product_id, ci.quantity, p.id IS NOT NULL,
		       COALESCE(p.name, ''), COALESCE(p.description, ''), COALESCE(p.price::text, '0')
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.position, ci.product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &Snapshot{UserID: userID, CapturedAt: time.Now().UTC()}
	for rows.Next() {
		var (
			it     Item
			exists bool
			price  string
		)
		if err := rows.Scan(&it.ProductID, &it.Quantity, &exists, &it.Name, &it.Description, &price); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", it.ProductID, err)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, it.ProductID)
		}
		s.Items = append(s.Items, it)
	}
	return s, rows.Err()
}

// Clear deletes the cart and its items. Clearing a missing cart is a no-op.
func (r *Repo) Clear(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE user_id=$1`, userID)
	return err
}
