// Package checkout turns a user's cart into a hosted payment session.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-payments/internal/cart"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
)

var ErrEmptyCart = errors.New("no products are in the cart")

type CartReader interface {
	Snapshot(ctx context.Context, userID string) (*cart.Snapshot, error)
}

type SessionGateway interface {
	CreateCheckoutSession(ctx context.Context, req gateway.SessionRequest) (string, error)
}

type Creator struct {
	Carts   CartReader
	Gateway SessionGateway
}

// Create builds one line item per cart item and opens a gateway session
// carrying the user id and shipping address as metadata. Nothing is written
// locally; the order appears only once the completion webhook arrives.
func (c *Creator) Create(ctx context.Context, userID string, shipping gateway.Address) (string, error) {
	snap, err := c.Carts.Snapshot(ctx, userID)
	if errors.Is(err, cart.ErrNotFound) {
		return "", ErrEmptyCart
	}
	if err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	if snap.Empty() {
		return "", ErrEmptyCart
	}

	items := make([]gateway.LineItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, gateway.LineItem{
			Name:        it.Name,
			Description: it.Description,
			UnitAmount:  it.UnitAmount(),
			Quantity:    int64(it.Quantity),
		})
	}

	id, err := c.Gateway.CreateCheckoutSession(ctx, gateway.SessionRequest{
		UserID:          userID,
		ShippingAddress: shipping,
		Items:           items,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
