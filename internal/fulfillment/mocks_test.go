package fulfillment

import (
	"context"
	"errors"
	"sync"

	"github.com/ariefcatur/go-shop-payments/internal/cart"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/ariefcatur/go-shop-payments/internal/inventory"
	"github.com/ariefcatur/go-shop-payments/internal/notify"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/google/uuid"
)

type MockVerifier struct {
	Event *gateway.Event
	Err   error
}

func (m *MockVerifier) VerifyEvent(_ []byte, _ string) (*gateway.Event, error) {
	return m.Event, m.Err
}

type MockCustomers struct {
	ID   string
	Keys []string
	Err  error
}

func (m *MockCustomers) CreateCustomer(_ context.Context, _ gateway.CustomerDetails, key string) (string, error) {
	m.Keys = append(m.Keys, key)
	return m.ID, m.Err
}

type MemCarts struct {
	mu    sync.Mutex
	Carts map[string]*cart.Snapshot
}

func (m *MemCarts) Snapshot(_ context.Context, userID string) (*cart.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Carts[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return s, nil
}

func (m *MemCarts) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Carts, userID)
	return nil
}

type MemOrders struct {
	mu        sync.Mutex
	Orders    map[string]*orders.Order
	Payments  map[string]*orders.Payment
	Completed map[string]bool
}

func NewMemOrders() *MemOrders {
	return &MemOrders{
		Orders:    map[string]*orders.Order{},
		Payments:  map[string]*orders.Payment{},
		Completed: map[string]bool{},
	}
}

func (m *MemOrders) CreateOrder(_ context.Context, o *orders.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.Orders[o.SessionID]; ok {
		*o = *stored
		return true, nil
	}
	o.ID = uuid.NewString()
	o.Status = orders.StatusPending
	cp := *o
	m.Orders[o.SessionID] = &cp
	return false, nil
}

func (m *MemOrders) CreatePayment(_ context.Context, p *orders.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.Payments[p.SessionID]; ok {
		*p = *stored
		return true, nil
	}
	p.ID = uuid.NewString()
	cp := *p
	m.Payments[p.SessionID] = &cp
	return false, nil
}

func (m *MemOrders) PaymentBySession(_ context.Context, sessionID string) (*orders.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Payments[sessionID]
	if !ok {
		return nil, orders.ErrPaymentNotFound
	}
	return p, nil
}

func (m *MemOrders) MarkCompleted(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed[orderID] = true
	return nil
}

// MemInventory fails the first FailTimes calls with Err.
type MemInventory struct {
	mu        sync.Mutex
	Decrement map[string]int
	Calls     int
	FailTimes int
	Err       error
}

func (m *MemInventory) ApplyOrder(_ context.Context, _ string, lines []inventory.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Calls <= m.FailTimes {
		return m.Err
	}
	if m.Decrement == nil {
		m.Decrement = map[string]int{}
	}
	for _, ln := range lines {
		m.Decrement[ln.ProductID] += ln.Qty
	}
	return nil
}

type MockNotifier struct {
	mu       sync.Mutex
	Items    []notify.InvoiceItem
	Currency string
	Ref      string
	Sent     []notify.Confirmation
	SendErr  error
}

func (m *MockNotifier) IssueInvoice(_ context.Context, _, _, currency string, items []notify.InvoiceItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = append(m.Items, items...)
	m.Currency = currency
	return m.Ref, nil
}

func (m *MockNotifier) Send(_ context.Context, c notify.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, c)
	return nil
}

type MemProgress struct {
	mu   sync.Mutex
	Rows map[string]Progress
}

func (m *MemProgress) Get(_ context.Context, sessionID string) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Rows[sessionID]
	if !ok {
		return nil, ErrNoProgress
	}
	return &p, nil
}

func (m *MemProgress) Save(_ context.Context, p *Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Rows == nil {
		m.Rows = map[string]Progress{}
	}
	m.Rows[p.SessionID] = *p
	return nil
}

var errBoom = errors.New("boom")
