package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a user's cart with product details resolved at read time.
type Snapshot struct {
	UserID     string    `json:"user_id"`
	Items      []Item    `json:"items"`
	CapturedAt time.Time `json:"captured_at"`
}

type Item struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (s *Snapshot) Empty() bool { return s == nil || len(s.Items) == 0 }

// UnitAmount is the price in currency minor units, rounded half away from zero.
func (it Item) UnitAmount() int64 {
	return it.UnitPrice.Shift(2).Round(0).IntPart()
}

// LineAmount is UnitAmount times quantity.
func (it Item) LineAmount() int64 {
	return it.UnitAmount() * int64(it.Quantity)
}
