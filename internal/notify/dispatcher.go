package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

type InvoiceGateway interface {
	CreateInvoice(ctx context.Context, customerID, idempotencyKey string) (string, error)
	AddInvoiceItem(ctx context.Context, customerID, invoiceID string, line gateway.InvoiceLine, idempotencyKey string) error
	IssueInvoice(ctx context.Context, invoiceID, idempotencyKey string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

type InvoiceItem struct {
	ProductID   string
	Description string
	Amount      int64
}

type Dispatcher struct {
	Gateway InvoiceGateway
	Queue   Publisher
	Service string
}

// IssueInvoice opens a draft for the session, attaches every item to it,
// stopping at the first failure, then issues it. Only items attached to this
// draft are billed. Gateway idempotency keys derive from the session so a
// retried fulfillment reuses the same draft and does not bill twice.
func (d *Dispatcher) IssueInvoice(ctx context.Context, customerID, sessionID, currency string, items []InvoiceItem) (string, error) {
	invoiceID, err := d.Gateway.CreateInvoice(ctx, customerID, sessionID+":invoice:create")
	if err != nil {
		return "", err
	}
	for _, it := range items {
		line := gateway.InvoiceLine{Description: it.Description, Amount: it.Amount, Currency: currency}
		if err := d.Gateway.AddInvoiceItem(ctx, customerID, invoiceID, line, sessionID+":item:"+it.ProductID); err != nil {
			return "", fmt.Errorf("invoice item %s: %w", it.ProductID, err)
		}
	}
	ref, err := d.Gateway.IssueInvoice(ctx, invoiceID, sessionID+":invoice")
	if err != nil {
		return "", err
	}
	return ref, nil
}

// ConfirmationEventID is stable per session, so the mail worker drops the
// duplicate when a retried fulfillment queues the confirmation again.
func ConfirmationEventID(sessionID string) string {
	return sessionID + ":confirmation"
}

// Send renders the confirmation and queues it for the mail worker.
func (d *Dispatcher) Send(ctx context.Context, c Confirmation) error {
	body, err := RenderConfirmation(c)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	ev := orders.Envelope{
		EventID:       ConfirmationEventID(c.SessionID),
		EventType:     orders.EventOrderConfirmed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Service,
		CorrelationID: c.OrderID,
		Payload: kafkax.MustMarshal(orders.OrderConfirmedPayload{
			OrderID:    c.OrderID,
			SessionID:  c.SessionID,
			To:         c.To,
			Subject:    ConfirmationSubject,
			Body:       body,
			InvoiceRef: c.InvoiceRef,
		}),
	}
	return d.Queue.Publish(ctx, orders.PartitionKey(c.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderConfirmed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
