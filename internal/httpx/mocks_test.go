package httpx

import (
	"context"

	"github.com/ariefcatur/go-shop-payments/internal/fulfillment"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
)

type MockCheckout struct {
	ID       string
	Err      error
	UserID   string
	Shipping gateway.Address
}

func (m *MockCheckout) Create(_ context.Context, userID string, shipping gateway.Address) (string, error) {
	m.UserID, m.Shipping = userID, shipping
	return m.ID, m.Err
}

type MockWebhooks struct {
	Result    fulfillment.Result
	Err       error
	Payload   []byte
	Signature string
}

func (m *MockWebhooks) Process(_ context.Context, payload []byte, signature string) (fulfillment.Result, error) {
	m.Payload, m.Signature = payload, signature
	return m.Result, m.Err
}

type MockPayments struct {
	ByUser map[string][]orders.Payment
	Err    error
}

func (m *MockPayments) ListPayments(_ context.Context, userID string) ([]orders.Payment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ByUser[userID], nil
}
