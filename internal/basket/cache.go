package basket

import (
	"context"
	"errors"

	"github.com/mvoss/storefront/internal/domain"
)

type Cache interface {
	Get(ctx context.Context, sessionID string) (*domain.Basket, error)
	Set(ctx context.Context, sessionID string, basket *domain.Basket) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
