package orders

import (
	"encoding/json"
	"time"
)

const EventOrderConfirmed = "OrderConfirmed"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// OrderConfirmedPayload is a rendered confirmation mail waiting for delivery.
type OrderConfirmedPayload struct {
	OrderID    string `json:"order_id"`
	SessionID  string `json:"session_id"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	InvoiceRef string `json:"invoice_ref,omitempty"`
}
