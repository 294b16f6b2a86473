// Package gateway abstracts the hosted payment provider: checkout sessions,
// customers, invoices and signed webhook events.
package gateway

import (
	"context"
	"errors"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

var (
	// ErrAuthentication means the webhook signature did not match the payload.
	ErrAuthentication = errors.New("webhook signature verification failed")
	// ErrMalformedEvent means a correctly signed body could not be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (string, error)
	CreateCustomer(ctx context.Context, c CustomerDetails, idempotencyKey string) (string, error)
	// CreateInvoice opens an empty draft invoice; pending items of the
	// customer stay out of it.
	CreateInvoice(ctx context.Context, customerID, idempotencyKey string) (string, error)
	AddInvoiceItem(ctx context.Context, customerID, invoiceID string, line InvoiceLine, idempotencyKey string) error
	// IssueInvoice finalizes the draft and returns a shareable reference.
	IssueInvoice(ctx context.Context, invoiceID, idempotencyKey string) (string, error)
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) IsZero() bool { return a == Address{} }

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // minor units
	Quantity    int64
}

type SessionRequest struct {
	UserID          string
	ShippingAddress Address
	Items           []LineItem
}

type CustomerDetails struct {
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

type InvoiceLine struct {
	Description string
	Amount      int64 // minor units, unit price times quantity
	Currency    string
}

// Event is a verified webhook event. Session is set only for
// checkout.session.completed.
type Event struct {
	ID      string
	Type    string
	Session *CompletedSession
}

type CompletedSession struct {
	ID                 string
	CustomerID         string
	PaymentIntentID    string
	PaymentMethodTypes []string
	AmountTotal        int64
	Currency           string
	Metadata           map[string]string
	Customer           CustomerDetails
	Shipping           Address
}

const (
	MetadataUserID          = "userId"
	MetadataShippingAddress = "shippingAddress"
)

func (s *CompletedSession) UserID() string { return s.Metadata[MetadataUserID] }

func (s *CompletedSession) PaymentMethod() string {
	if len(s.PaymentMethodTypes) == 0 {
		return ""
	}
	return s.PaymentMethodTypes[0]
}
