package catalog

import (
	"context"
	"errors"

	"github.com/mvoss/storefront/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog resolves and prices products for basket operations. The category
// tree and catalog listing live behind this boundary.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}
