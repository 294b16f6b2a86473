package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/cart"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/ariefcatur/go-shop-payments/internal/inventory"
	"github.com/ariefcatur/go-shop-payments/internal/notify"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Outcome string

const (
	OutcomeFulfilled        Outcome = "fulfilled"
	OutcomeAlreadyFulfilled Outcome = "already_fulfilled"
	OutcomeNothingToDo      Outcome = "nothing_to_do"
)

type Result struct {
	Outcome   Outcome
	OrderID   string
	SessionID string
}

type Verifier interface {
	VerifyEvent(payload []byte, signature string) (*gateway.Event, error)
}

type Carts interface {
	Snapshot(ctx context.Context, userID string) (*cart.Snapshot, error)
	Clear(ctx context.Context, userID string) error
}

type Orders interface {
	CreateOrder(ctx context.Context, o *orders.Order) (bool, error)
	CreatePayment(ctx context.Context, p *orders.Payment) (bool, error)
	PaymentBySession(ctx context.Context, sessionID string) (*orders.Payment, error)
	MarkCompleted(ctx context.Context, orderID string) error
}

type Inventory interface {
	ApplyOrder(ctx context.Context, orderID string, lines []inventory.Line) error
}

type Notifier interface {
	IssueInvoice(ctx context.Context, customerID, sessionID, currency string, items []notify.InvoiceItem) (string, error)
	Send(ctx context.Context, c notify.Confirmation) error
}

type ProgressStore interface {
	Get(ctx context.Context, sessionID string) (*Progress, error)
	Save(ctx context.Context, p *Progress) error
}

type Locker interface {
	Acquire(ctx context.Context, sessionID string) (func(context.Context) error, error)
	Fulfilled(ctx context.Context, sessionID string) (string, bool)
	MarkFulfilled(ctx context.Context, sessionID, orderID string) error
}

// Orchestrator turns a paid checkout session into an order. Every step is
// recorded in the progress store, so a redelivered event resumes after the
// last finished step and never repeats a committed one.
type Orchestrator struct {
	Verifier  Verifier
	Customers *CustomerResolver
	Carts     Carts
	Orders    Orders
	Inventory Inventory
	Notifier  Notifier
	Progress  ProgressStore
	Guard     Locker
	LeadTime  time.Duration
	Log       *slog.Logger
	Now       func() time.Time
}

var errNothingToDo = errors.New("cart already gone")

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-payments/internal/fulfillment")

// Process authenticates the raw webhook body before anything in it is trusted.
func (o *Orchestrator) Process(ctx context.Context, payload []byte, signature string) (Result, error) {
	ev, err := o.Verifier.VerifyEvent(payload, signature)
	if err != nil {
		return Result{}, err
	}
	return o.Fulfill(ctx, ev)
}

func (o *Orchestrator) Fulfill(ctx context.Context, ev *gateway.Event) (Result, error) {
	if ev.Type != gateway.EventCheckoutSessionCompleted {
		return Result{}, fmt.Errorf("%w: %s", ErrUnhandledEvent, ev.Type)
	}
	s := ev.Session
	if s == nil || s.ID == "" || s.UserID() == "" {
		return Result{}, ErrInvalidEvent
	}
	res := Result{SessionID: s.ID}

	if orderID, ok := o.Guard.Fulfilled(ctx, s.ID); ok {
		res.Outcome, res.OrderID = OutcomeAlreadyFulfilled, orderID
		return res, nil
	}

	release, err := o.Guard.Acquire(ctx, s.ID)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			o.Log.WarnContext(ctx, "release fulfillment lock", "session_id", s.ID, "err", err)
		}
	}()

	p, err := o.Progress.Get(ctx, s.ID)
	switch {
	case errors.Is(err, ErrNoProgress):
		pay, err := o.Orders.PaymentBySession(ctx, s.ID)
		if err == nil {
			o.markFulfilled(ctx, s.ID, pay.OrderID)
			res.Outcome, res.OrderID = OutcomeAlreadyFulfilled, pay.OrderID
			return res, nil
		}
		if !errors.Is(err, orders.ErrPaymentNotFound) {
			return res, o.stepFailed(ctx, &Progress{SessionID: s.ID, EventID: ev.ID, UserID: s.UserID()}, StepEventVerified, err)
		}
		p = &Progress{SessionID: s.ID, EventID: ev.ID, UserID: s.UserID(), Step: StepEventVerified}
	case err != nil:
		return res, fmt.Errorf("load progress: %w", err)
	case p.Step == StepCompleted:
		o.markFulfilled(ctx, s.ID, p.OrderID)
		res.Outcome, res.OrderID = OutcomeAlreadyFulfilled, p.OrderID
		return res, nil
	default:
		o.Log.InfoContext(ctx, "resuming fulfillment", "session_id", s.ID, "after", p.Step, "event_id", ev.ID)
		p.EventID = ev.ID
	}

	for _, st := range o.steps() {
		if p.Step.Reached(st.step) {
			continue
		}
		err := o.runStep(ctx, st.step, func(ctx context.Context) error { return st.run(ctx, s, p) })
		if errors.Is(err, errNothingToDo) {
			o.Log.InfoContext(ctx, "nothing to fulfill", "session_id", s.ID, "user_id", p.UserID)
			res.Outcome = OutcomeNothingToDo
			return res, nil
		}
		if err != nil {
			return res, o.stepFailed(ctx, p, st.step, err)
		}
		p.Step, p.LastError = st.step, ""
		if err := o.Progress.Save(ctx, p); err != nil {
			return res, o.stepFailed(ctx, p, st.step, fmt.Errorf("save progress: %w", err))
		}
	}

	o.markFulfilled(ctx, s.ID, p.OrderID)
	o.Log.InfoContext(ctx, "order fulfilled", "session_id", s.ID, "order_id", p.OrderID, "user_id", p.UserID)
	res.Outcome, res.OrderID = OutcomeFulfilled, p.OrderID
	return res, nil
}

type step struct {
	step Step
	run  func(ctx context.Context, s *gateway.CompletedSession, p *Progress) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{StepCartLoaded, o.loadCart},
		{StepCustomerResolved, o.resolveCustomer},
		{StepOrderCreated, o.createOrder},
		{StepPaymentRecorded, o.recordPayment},
		{StepCartCleared, o.clearCart},
		{StepStockAdjusted, o.adjustStock},
		{StepOrderFinalized, o.finalizeOrder},
		{StepInvoiceIssued, o.issueInvoice},
		{StepNotificationSent, o.sendNotification},
		{StepCompleted, func(context.Context, *gateway.CompletedSession, *Progress) error { return nil }},
	}
}

func (o *Orchestrator) runStep(ctx context.Context, st Step, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "fulfillment."+string(st))
	defer span.End()
	err := fn(ctx)
	if err != nil && !errors.Is(err, errNothingToDo) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("fulfillment.step", string(st)))
	return err
}

func (o *Orchestrator) stepFailed(ctx context.Context, p *Progress, st Step, err error) error {
	serr := &StepError{Step: st, EventID: p.EventID, SessionID: p.SessionID, UserID: p.UserID, Err: err}
	o.Log.ErrorContext(ctx, "fulfillment step failed",
		"step", st, "event_id", p.EventID, "session_id", p.SessionID, "user_id", p.UserID, "err", err)
	if p.Step.Valid() {
		p.LastError = serr.Error()
		if err := o.Progress.Save(ctx, p); err != nil {
			o.Log.ErrorContext(ctx, "record fulfillment failure", "session_id", p.SessionID, "err", err)
		}
	}
	return serr
}

func (o *Orchestrator) markFulfilled(ctx context.Context, sessionID, orderID string) {
	if err := o.Guard.MarkFulfilled(ctx, sessionID, orderID); err != nil {
		o.Log.WarnContext(ctx, "cache fulfilled session", "session_id", sessionID, "err", err)
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) loadCart(ctx context.Context, _ *gateway.CompletedSession, p *Progress) error {
	snap, err := o.Carts.Snapshot(ctx, p.UserID)
	if errors.Is(err, cart.ErrNotFound) || (err == nil && snap.Empty()) {
		return errNothingToDo
	}
	if err != nil {
		return err
	}
	p.Snapshot = *snap
	return nil
}

func (o *Orchestrator) resolveCustomer(ctx context.Context, s *gateway.CompletedSession, p *Progress) error {
	id, err := o.Customers.Resolve(ctx, s)
	if err != nil {
		return err
	}
	p.CustomerID = id
	return nil
}

func (o *Orchestrator) createOrder(ctx context.Context, s *gateway.CompletedSession, p *Progress) error {
	now := o.now()
	ord := &orders.Order{
		SessionID:       s.ID,
		UserID:          p.UserID,
		TotalCents:      s.AmountTotal,
		Currency:        s.Currency,
		ShippingAddress: s.Shipping,
		OrderDate:       now,
		DeliveryDate:    now.Add(o.LeadTime),
	}
	for _, it := range p.Snapshot.Items {
		ord.Items = append(ord.Items, orders.OrderItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Qty:            it.Quantity,
			UnitPriceCents: it.UnitAmount(),
		})
	}
	if _, err := o.Orders.CreateOrder(ctx, ord); err != nil {
		return err
	}
	p.OrderID, p.DeliveryDate = ord.ID, ord.DeliveryDate
	return nil
}

func (o *Orchestrator) recordPayment(ctx context.Context, s *gateway.CompletedSession, p *Progress) error {
	_, err := o.Orders.CreatePayment(ctx, &orders.Payment{
		SessionID:       s.ID,
		OrderID:         p.OrderID,
		UserID:          p.UserID,
		PaymentIntentID: s.PaymentIntentID,
		PaymentMethod:   s.PaymentMethod(),
		AmountCents:     s.AmountTotal,
		Currency:        s.Currency,
		Address:         s.Shipping,
		Status:          orders.PaymentCompleted,
	})
	return err
}

func (o *Orchestrator) clearCart(ctx context.Context, _ *gateway.CompletedSession, p *Progress) error {
	return o.Carts.Clear(ctx, p.UserID)
}

func (o *Orchestrator) adjustStock(ctx context.Context, _ *gateway.CompletedSession, p *Progress) error {
	lines := make([]inventory.Line, 0, len(p.Snapshot.Items))
	for _, it := range p.Snapshot.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return o.Inventory.ApplyOrder(ctx, p.OrderID, lines)
}

func (o *Orchestrator) finalizeOrder(ctx context.Context, _ *gateway.CompletedSession, p *Progress) error {
	return o.Orders.MarkCompleted(ctx, p.OrderID)
}

func (o *Orchestrator) issueInvoice(ctx context.Context, s *gateway.CompletedSession, p *Progress) error {
	items := make([]notify.InvoiceItem, 0, len(p.Snapshot.Items))
	for _, it := range p.Snapshot.Items {
		items = append(items, notify.InvoiceItem{
			ProductID:   it.ProductID,
			Description: it.Name,
			Amount:      it.LineAmount(),
		})
	}
	ref, err := o.Notifier.IssueInvoice(ctx, p.CustomerID, s.ID, s.Currency, items)
	if err != nil {
		return err
	}
	p.InvoiceRef = ref
	return nil
}

// sendNotification queues the confirmation mail. A failure to queue leaves
// the completed order in place and is only logged.
func (o *Orchestrator) sendNotification(ctx context.Context, s *gateway.CompletedSession, p *Progress) error {
	c := notify.Confirmation{
		OrderID:      p.OrderID,
		SessionID:    s.ID,
		To:           s.Customer.Email,
		Name:         s.Customer.Name,
		TotalCents:   s.AmountTotal,
		Currency:     s.Currency,
		DeliveryDate: p.DeliveryDate,
		Shipping:     s.Shipping,
		InvoiceRef:   p.InvoiceRef,
	}
	for _, it := range p.Snapshot.Items {
		c.Items = append(c.Items, notify.ConfirmationItem{Name: it.Name, Qty: it.Quantity})
	}
	if c.To == "" {
		o.Log.WarnContext(ctx, "no payer email, confirmation skipped", "session_id", s.ID, "order_id", p.OrderID)
		return nil
	}
	if err := o.Notifier.Send(ctx, c); err != nil {
		o.Log.ErrorContext(ctx, "queue order confirmation", "session_id", s.ID, "order_id", p.OrderID, "err", err)
	}
	return nil
}
