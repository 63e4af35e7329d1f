package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one basket entry: a product, its quantity and the unit price
// captured when the line was first added.
type Line struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Basket is the session-scoped cart. Quantities are always positive; a
// quantity update to zero or less removes the line instead.
type Basket struct {
	SessionID     string          `json:"session_id"`
	Lines         []Line          `json:"lines"`
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ItemCount is the total quantity across all lines.
func (b *Basket) ItemCount() int {
	count := 0
	for _, l := range b.Lines {
		count += l.Quantity
	}
	return count
}

func (b *Basket) IsEmpty() bool {
	return len(b.Lines) == 0
}

func (b *Basket) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range b.Lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func (b *Basket) Total() decimal.Decimal {
	return b.Subtotal().Add(b.DeliveryPrice)
}

// FindLine returns the line for productID, if present.
func (b *Basket) FindLine(productID int64) (Line, bool) {
	for _, l := range b.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}
