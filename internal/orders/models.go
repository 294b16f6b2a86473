package orders

import (
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/gateway"
)

// Order is the frozen result of one fulfilled checkout session.
type Order struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	Items           []OrderItem     `json:"items"`
	TotalCents      int64           `json:"total_cents"`
	Currency        string          `json:"currency"`
	ShippingAddress gateway.Address `json:"shipping_address"`
	OrderDate       time.Time       `json:"order_date"`
	DeliveryDate    time.Time       `json:"delivery_date"`
}

type OrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type PaymentStatus string

const PaymentCompleted PaymentStatus = "completed"

// Payment records the gateway side of an order and points back at it.
type Payment struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	PaymentMethod   string          `json:"payment_method"`
	AmountCents     int64           `json:"amount_cents"`
	Currency        string          `json:"currency"`
	Address         gateway.Address `json:"address"`
	Status          PaymentStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}
