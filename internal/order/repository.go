package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mvoss/storefront/internal/domain"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateTransaction = errors.New("order for this transaction already exists")
)

// OutboxEvent is written in the same transaction as the order it
// describes and published asynchronously by the outbox poller.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type Repository interface {
	// CreateOrder persists the order, all its items and the outbox event
	// atomically: all rows or none.
	CreateOrder(ctx context.Context, order *domain.Order, event *OutboxEvent) error
	GetOrderByKey(ctx context.Context, orderKey string) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, id uuid.UUID) error
}
