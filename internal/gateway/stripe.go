package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-payments/internal/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe implements Gateway on a per-instance API client, so the secret key
// never lives in package state.
type Stripe struct {
	api *client.API
	cfg config.Stripe
}

var _ Gateway = (*Stripe)(nil)

func NewStripe(cfg config.Stripe) *Stripe {
	return NewStripeWithBackends(cfg, nil)
}

// NewStripeWithBackends points the client at custom backends (tests, proxies).
func NewStripeWithBackends(cfg config.Stripe, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(cfg.SecretKey, backends), cfg: cfg}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req SessionRequest) (string, error) {
	addr, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return "", fmt.Errorf("encode shipping address: %w", err)
	}

	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(s.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(it.Name),
					Description: optional(it.Description),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lines,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.cfg.SuccessURL),
		CancelURL:          stripe.String(s.cfg.CancelURL),
	}
	if len(s.cfg.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(s.cfg.AllowedCountries),
		}
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID)
	params.AddMetadata(MetadataShippingAddress, string(addr))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, nil
}

func (s *Stripe) CreateCustomer(ctx context.Context, c CustomerDetails, idempotencyKey string) (string, error) {
	params := &stripe.CustomerParams{
		Email: optional(c.Email),
		Name:  optional(c.Name),
	}
	if !c.Address.IsZero() {
		params.Address = &stripe.AddressParams{
			Line1:      optional(c.Address.Line1),
			Line2:      optional(c.Address.Line2),
			City:       optional(c.Address.City),
			State:      optional(c.Address.State),
			PostalCode: optional(c.Address.PostalCode),
			Country:    optional(c.Address.Country),
		}
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	cus, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cus.ID, nil
}

// CreateInvoice opens a draft that only holds items attached to it
// explicitly, so items of other sessions of the same customer stay out.
func (s *Stripe) CreateInvoice(ctx context.Context, customerID, idempotencyKey string) (string, error) {
	params := &stripe.InvoiceParams{
		Customer:                    stripe.String(customerID),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:                stripe.Int64(1),
		AutoAdvance:                 stripe.Bool(false),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	inv, err := s.api.Invoices.New(params)
	if err != nil {
		return "", fmt.Errorf("create invoice: %w", err)
	}
	return inv.ID, nil
}

func (s *Stripe) AddInvoiceItem(ctx context.Context, customerID, invoiceID string, line InvoiceLine, idempotencyKey string) error {
	currency := line.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(invoiceID),
		Amount:      stripe.Int64(line.Amount),
		Currency:    stripe.String(currency),
		Description: stripe.String(line.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := s.api.InvoiceItems.New(params); err != nil {
		return fmt.Errorf("create invoice item: %w", err)
	}
	return nil
}

// IssueInvoice finalizes the draft and marks it paid out of band, since the
// checkout session already collected the money. The hosted invoice URL is the
// shareable reference.
func (s *Stripe) IssueInvoice(ctx context.Context, invoiceID, idempotencyKey string) (string, error) {
	fin := &stripe.InvoiceFinalizeInvoiceParams{}
	fin.Context = ctx
	fin.SetIdempotencyKey(idempotencyKey + ":finalize")
	inv, err := s.api.Invoices.FinalizeInvoice(invoiceID, fin)
	if err != nil {
		return "", fmt.Errorf("finalize invoice: %w", err)
	}

	if inv.Status == stripe.InvoiceStatusOpen {
		pay := &stripe.InvoicePayParams{PaidOutOfBand: stripe.Bool(true)}
		pay.Context = ctx
		pay.SetIdempotencyKey(idempotencyKey + ":pay")
		if inv, err = s.api.Invoices.Pay(inv.ID, pay); err != nil {
			return "", fmt.Errorf("pay invoice: %w", err)
		}
	}

	if inv.HostedInvoiceURL != "" {
		return inv.HostedInvoiceURL, nil
	}
	return inv.ID, nil
}

// VerifyEvent checks the signature over the exact request bytes before
// anything in the payload is trusted.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutSessionCompleted {
		if ev.Data == nil {
			return nil, fmt.Errorf("%w: missing data", ErrMalformedEvent)
		}
		sess, err := decodeSession(ev.Data.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.Session = sess
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}
