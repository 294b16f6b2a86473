package fulfillment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-payments/internal/cart"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/ariefcatur/go-shop-payments/internal/inventory"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	o         *Orchestrator
	mr        *miniredis.Miniredis
	carts     *MemCarts
	orders    *MemOrders
	inventory *MemInventory
	notifier  *MockNotifier
	progress  *MemProgress
	customers *MockCustomers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		mr: mr,
		carts: &MemCarts{Carts: map[string]*cart.Snapshot{
			"user-1": {UserID: "user-1", Items: []cart.Item{
				{ProductID: "p-a", Name: "Widget", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
				{ProductID: "p-b", Name: "Gadget", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 1},
			}},
		}},
		orders:    NewMemOrders(),
		inventory: &MemInventory{},
		notifier:  &MockNotifier{Ref: "https://invoice.example/in_1"},
		progress:  &MemProgress{},
		customers: &MockCustomers{ID: "cus_new"},
	}
	f.o = &Orchestrator{
		Customers: &CustomerResolver{Gateway: f.customers},
		Carts:     f.carts,
		Orders:    f.orders,
		Inventory: f.inventory,
		Notifier:  f.notifier,
		Progress:  f.progress,
		Guard:     &Guard{Redis: rdb, TTL: time.Minute},
		LeadTime:  7 * 24 * time.Hour,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return fixedNow },
	}
	return f
}

func completedEvent() *gateway.Event {
	return &gateway.Event{
		ID:   "evt_1",
		Type: gateway.EventCheckoutSessionCompleted,
		Session: &gateway.CompletedSession{
			ID:                 "cs_1",
			PaymentIntentID:    "pi_1",
			PaymentMethodTypes: []string{"card"},
			AmountTotal:        2500,
			Currency:           "usd",
			Metadata:           map[string]string{gateway.MetadataUserID: "user-1"},
			Customer:           gateway.CustomerDetails{Email: "jane@example.com", Name: "Jane Doe"},
			Shipping:           gateway.Address{Line1: "1 Main St", City: "Austin", Country: "US"},
		},
	}
}

func TestFulfill_PaidCart(t *testing.T) {
	f := newFixture(t)

	res, err := f.o.Fulfill(context.Background(), completedEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeFulfilled, res.Outcome)
	assert.Equal(t, "cs_1", res.SessionID)

	ord := f.orders.Orders["cs_1"]
	require.NotNil(t, ord)
	assert.Equal(t, res.OrderID, ord.ID)
	assert.Equal(t, int64(2500), ord.TotalCents)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), ord.DeliveryDate)
	assert.Equal(t, []orders.OrderItem{
		{ProductID: "p-a", Name: "Widget", Qty: 2, UnitPriceCents: 1000},
		{ProductID: "p-b", Name: "Gadget", Qty: 1, UnitPriceCents: 500},
	}, ord.Items)
	assert.True(t, f.orders.Completed[ord.ID])

	pay := f.orders.Payments["cs_1"]
	require.NotNil(t, pay)
	assert.Equal(t, ord.ID, pay.OrderID)
	assert.Equal(t, orders.PaymentCompleted, pay.Status)
	assert.Equal(t, "card", pay.PaymentMethod)
	assert.Equal(t, int64(2500), pay.AmountCents)

	assert.NotContains(t, f.carts.Carts, "user-1")
	assert.Equal(t, map[string]int{"p-a": 2, "p-b": 1}, f.inventory.Decrement)

	assert.Equal(t, []string{"cs_1:customer"}, f.customers.Keys)
	require.Len(t, f.notifier.Items, 2)
	assert.Equal(t, int64(2000), f.notifier.Items[0].Amount)
	assert.Equal(t, "usd", f.notifier.Currency)

	require.Len(t, f.notifier.Sent, 1)
	mail := f.notifier.Sent[0]
	assert.Equal(t, "jane@example.com", mail.To)
	assert.Equal(t, ord.ID, mail.OrderID)
	assert.Equal(t, "https://invoice.example/in_1", mail.InvoiceRef)
	assert.Len(t, mail.Items, 2)

	assert.Equal(t, StepCompleted, f.progress.Rows["cs_1"].Step)
	assert.True(t, f.mr.Exists("fulfilled:cs_1"))
}

func TestFulfill_RedeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.o.Fulfill(ctx, completedEvent())
	require.NoError(t, err)

	second, err := f.o.Fulfill(ctx, completedEvent())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFulfilled, second.Outcome)
	assert.Equal(t, first.OrderID, second.OrderID)

	// without the cache the progress marker still answers
	f.mr.FlushAll()
	third, err := f.o.Fulfill(ctx, completedEvent())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFulfilled, third.Outcome)

	assert.Len(t, f.orders.Orders, 1)
	assert.Len(t, f.orders.Payments, 1)
	assert.Equal(t, 1, f.inventory.Calls)
	assert.Len(t, f.notifier.Sent, 1)
}

func TestFulfill_ExistingPaymentWithoutProgress(t *testing.T) {
	f := newFixture(t)
	f.orders.Payments["cs_1"] = &orders.Payment{SessionID: "cs_1", OrderID: "ord-legacy"}

	res, err := f.o.Fulfill(context.Background(), completedEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeAlreadyFulfilled, res.Outcome)
	assert.Equal(t, "ord-legacy", res.OrderID)
	assert.Empty(t, f.orders.Orders)
	assert.Contains(t, f.carts.Carts, "user-1")
}

func TestFulfill_ResumesAfterFailedStep(t *testing.T) {
	f := newFixture(t)
	f.inventory.FailTimes, f.inventory.Err = 1, &inventory.InsufficientStockError{ProductID: "p-a", Requested: 2, Available: 1}
	ctx := context.Background()

	_, err := f.o.Fulfill(ctx, completedEvent())
	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StepStockAdjusted, serr.Step)
	assert.Equal(t, "evt_1", serr.EventID)
	assert.Equal(t, "user-1", serr.UserID)
	var ise *inventory.InsufficientStockError
	assert.ErrorAs(t, err, &ise)

	saved := f.progress.Rows["cs_1"]
	assert.Equal(t, StepCartCleared, saved.Step)
	assert.NotEmpty(t, saved.LastError)
	assert.NotContains(t, f.carts.Carts, "user-1")
	assert.Empty(t, f.notifier.Sent)
	assert.False(t, f.mr.Exists("fulfilled:cs_1"))

	ev := completedEvent()
	ev.ID = "evt_1_retry"
	res, err := f.o.Fulfill(ctx, ev)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFulfilled, res.Outcome)
	assert.Len(t, f.orders.Orders, 1)
	assert.Len(t, f.orders.Payments, 1)
	assert.Equal(t, map[string]int{"p-a": 2, "p-b": 1}, f.inventory.Decrement)
	assert.Len(t, f.notifier.Sent, 1)
	assert.Empty(t, f.progress.Rows["cs_1"].LastError)
	assert.Equal(t, "evt_1_retry", f.progress.Rows["cs_1"].EventID)
	assert.Equal(t, []string{"cs_1:customer"}, f.customers.Keys)
}

func TestFulfill_CartGone(t *testing.T) {
	f := newFixture(t)
	delete(f.carts.Carts, "user-1")

	res, err := f.o.Fulfill(context.Background(), completedEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNothingToDo, res.Outcome)
	assert.Empty(t, f.orders.Orders)
	assert.Empty(t, f.orders.Payments)
	assert.Empty(t, f.progress.Rows)
}

func TestFulfill_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.carts.Carts["user-1"] = &cart.Snapshot{UserID: "user-1"}

	res, err := f.o.Fulfill(context.Background(), completedEvent())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, res.Outcome)
	assert.Empty(t, f.orders.Orders)
}

func TestFulfill_UnhandledEventType(t *testing.T) {
	f := newFixture(t)

	_, err := f.o.Fulfill(context.Background(), &gateway.Event{ID: "evt_2", Type: "invoice.paid"})

	assert.ErrorIs(t, err, ErrUnhandledEvent)
	assert.Empty(t, f.orders.Orders)
	assert.Contains(t, f.carts.Carts, "user-1")
}

func TestFulfill_MissingUserID(t *testing.T) {
	f := newFixture(t)
	ev := completedEvent()
	ev.Session.Metadata = nil

	_, err := f.o.Fulfill(context.Background(), ev)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestFulfill_SessionLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set("lock:fulfillment:cs_1", "someone-else"))

	_, err := f.o.Fulfill(context.Background(), completedEvent())

	assert.ErrorIs(t, err, ErrInProgress)
	assert.Empty(t, f.orders.Orders)
}

func TestFulfill_NotificationFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.notifier.SendErr = errBoom

	res, err := f.o.Fulfill(context.Background(), completedEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeFulfilled, res.Outcome)
	assert.True(t, f.orders.Completed[res.OrderID])
	assert.Equal(t, StepCompleted, f.progress.Rows["cs_1"].Step)
}

func TestFulfill_ReusesSessionCustomer(t *testing.T) {
	f := newFixture(t)
	ev := completedEvent()
	ev.Session.CustomerID = "cus_existing"

	_, err := f.o.Fulfill(context.Background(), ev)
	require.NoError(t, err)

	assert.Empty(t, f.customers.Keys)
	assert.Equal(t, "cus_existing", f.progress.Rows["cs_1"].CustomerID)
}

func TestProcess_BadSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	f.o.Verifier = &MockVerifier{Err: gateway.ErrAuthentication}

	_, err := f.o.Process(context.Background(), []byte(`{}`), "t=1,v1=bad")

	assert.ErrorIs(t, err, gateway.ErrAuthentication)
	assert.Empty(t, f.orders.Orders)
	assert.Empty(t, f.progress.Rows)
	assert.Contains(t, f.carts.Carts, "user-1")
}

func TestProcess_VerifiedEvent(t *testing.T) {
	f := newFixture(t)
	f.o.Verifier = &MockVerifier{Event: completedEvent()}

	res, err := f.o.Process(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFulfilled, res.Outcome)
}
