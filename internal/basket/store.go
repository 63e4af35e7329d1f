package basket

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mvoss/storefront/internal/domain"
)

var (
	ErrBasketNotFound = errors.New("basket not found")
	ErrLineNotFound   = errors.New("line not found in basket")
)

// Store defines the interface for basket persistence.
// Consumers define this interface, not the MongoDB implementation.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Basket, error)
	AddLine(ctx context.Context, sessionID string, line domain.Line) error
	SetLineQuantity(ctx context.Context, sessionID string, productID int64, quantity int) error
	RemoveLine(ctx context.Context, sessionID string, productID int64) error
	SetDeliveryPrice(ctx context.Context, sessionID string, price decimal.Decimal) error
	Clear(ctx context.Context, sessionID string) error
}
