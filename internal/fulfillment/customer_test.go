package fulfillment

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCustomers struct {
	details gateway.CustomerDetails
}

func (r *recordingCustomers) CreateCustomer(_ context.Context, c gateway.CustomerDetails, _ string) (string, error) {
	r.details = c
	return "cus_1", nil
}

func TestResolve_FallsBackToShippingAddress(t *testing.T) {
	gw := &recordingCustomers{}
	r := &CustomerResolver{Gateway: gw}
	ship := gateway.Address{Line1: "1 Main St", City: "Austin", Country: "US"}

	id, err := r.Resolve(context.Background(), &gateway.CompletedSession{
		ID:       "cs_1",
		Customer: gateway.CustomerDetails{Email: "jane@example.com", Name: "Jane"},
		Shipping: ship,
	})
	require.NoError(t, err)

	assert.Equal(t, "cus_1", id)
	assert.Equal(t, ship, gw.details.Address)
	assert.Equal(t, "jane@example.com", gw.details.Email)
}
