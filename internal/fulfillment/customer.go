package fulfillment

import (
	"context"

	"github.com/ariefcatur/go-shop-payments/internal/gateway"
)

type CustomerGateway interface {
	CreateCustomer(ctx context.Context, c gateway.CustomerDetails, idempotencyKey string) (string, error)
}

// CustomerResolver returns the gateway customer to invoice for a session.
type CustomerResolver struct {
	Gateway CustomerGateway
}

// Resolve reuses the customer attached to the session, otherwise creates one
// from the payer details. Creation is keyed by session so retries reuse it.
func (r *CustomerResolver) Resolve(ctx context.Context, s *gateway.CompletedSession) (string, error) {
	if s.CustomerID != "" {
		return s.CustomerID, nil
	}
	details := s.Customer
	if details.Address.IsZero() {
		details.Address = s.Shipping
	}
	return r.Gateway.CreateCustomer(ctx, details, s.ID+":customer")
}
