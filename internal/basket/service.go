package basket

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/mvoss/storefront/internal/catalog"
	"github.com/mvoss/storefront/internal/domain"
)

// MaxLineQuantity bounds a single add or update request.
const MaxLineQuantity = 99

var ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")

type Service struct {
	store   Store
	cache   Cache
	catalog catalog.Catalog
	sfg     singleflight.Group // Prevents cache stampede
}

func NewService(store Store, cache Cache, cat catalog.Catalog) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		catalog: cat,
	}
}

// Get returns the basket for a session, creating an empty one in memory on
// first access.
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Basket, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {

		basket, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return basket, nil // basket is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		basket, errGet := s.store.Get(ctx, sessionID)
		if errGet != nil && errors.Is(errGet, ErrBasketNotFound) {
			// first access for this session, an empty basket
			return &domain.Basket{
				SessionID:     sessionID,
				DeliveryPrice: decimal.Zero,
				CreatedAt:     time.Now(),
				UpdatedAt:     time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), sessionID, basket)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return basket, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Basket), nil
}

// Add is cumulative: adding a product already in the basket increments its
// quantity. The line is priced from the catalog at add time.
func (s *Service) Add(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Basket, error) {
	if quantity < 1 || quantity > MaxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	line := domain.Line{
		ProductID: product.ID,
		Title:     product.Title,
		UnitPrice: product.Price,
		Quantity:  quantity,
	}
	if errAdd := s.store.AddLine(ctx, sessionID, line); errAdd != nil {
		log.Printf("store add line error: %v", errAdd)
		return nil, errAdd
	}

	s.invalidateCache(sessionID)
	return s.Get(ctx, sessionID)
}

// Update sets a line's quantity exactly. Zero or less removes the line. An
// unknown product id is a no-op so a retried update after the line was
// already removed still succeeds.
func (s *Service) Update(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Basket, error) {
	if quantity > MaxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	var err error
	if quantity <= 0 {
		err = s.store.RemoveLine(ctx, sessionID, productID)
	} else {
		err = s.store.SetLineQuantity(ctx, sessionID, productID, quantity)
	}
	if err != nil && !errors.Is(err, ErrLineNotFound) && !errors.Is(err, ErrBasketNotFound) {
		log.Printf("store update line error: %v", err)
		return nil, err
	}

	s.invalidateCache(sessionID)
	return s.Get(ctx, sessionID)
}

// Remove deletes a line if present; removing an absent line is a no-op.
func (s *Service) Remove(ctx context.Context, sessionID string, productID int64) (*domain.Basket, error) {
	err := s.store.RemoveLine(ctx, sessionID, productID)
	if err != nil && !errors.Is(err, ErrBasketNotFound) {
		log.Printf("store remove line error: %v", err)
		return nil, err
	}

	s.invalidateCache(sessionID)
	return s.Get(ctx, sessionID)
}

// SetDeliveryPrice updates the delivery surcharge without touching line
// items and returns the re-priced basket.
func (s *Service) SetDeliveryPrice(ctx context.Context, sessionID string, price decimal.Decimal) (*domain.Basket, error) {
	if err := s.store.SetDeliveryPrice(ctx, sessionID, price); err != nil {
		log.Printf("store set delivery price error: %v", err)
		return nil, err
	}

	s.invalidateCache(sessionID)
	return s.Get(ctx, sessionID)
}

// Clear empties all lines and resets the delivery surcharge to zero.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		log.Printf("store clear error: %v", err)
		return err
	}

	s.invalidateCache(sessionID)
	return nil
}

func (s *Service) invalidateCache(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
