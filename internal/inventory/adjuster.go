package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError reports a decrement that would drive stock below zero.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type Line struct {
	ProductID string
	Qty       int
}

type Adjuster struct{ DB *pgxpool.Pool }

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Adjust applies a signed stock delta as one atomic UPDATE. A delta that would
// leave stock negative changes nothing and returns *InsufficientStockError.
func (a *Adjuster) Adjust(ctx context.Context, productID string, delta int) error {
	return adjust(ctx, a.DB, productID, delta)
}

func adjust(ctx context.Context, q execQuerier, productID string, delta int) error {
	ct, err := q.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0`, productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var stock int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Requested: -delta, Available: stock}
}

// ApplyOrder decrements stock for every line of an order concurrently and
// waits for all of them or the first failure. Each line is recorded in
// stock_adjustments in the same transaction as its decrement, so replaying
// an order skips the lines that already went through.
func (a *Adjuster) ApplyOrder(ctx context.Context, orderID string, lines []Line) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ln := range lines {
		ln := ln
		g.Go(func() error {
			if err := a.applyLine(ctx, orderID, ln); err != nil {
				return fmt.Errorf("adjust %s: %w", ln.ProductID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *Adjuster) applyLine(ctx context.Context, orderID string, ln Line) error {
	tx, err := a.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO stock_adjustments(order_id, product_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO NOTHING`, orderID, ln.ProductID, ln.Qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return nil
	}
	if err := adjust(ctx, tx, ln.ProductID, -ln.Qty); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
