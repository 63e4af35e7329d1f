package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/mvoss/storefront/internal/checkout"
	"github.com/mvoss/storefront/internal/domain"
)

var (
	ErrAmountMismatch  = errors.New("confirmed amount does not match basket total")
	ErrPaymentDeclined = errors.New("payment declined")
)

// amountTolerance bounds the acceptable difference between the basket
// total and the externally confirmed amount.
var amountTolerance = decimal.NewFromFloat(0.01)

const EventOrderCompleted = "order.completed"

type Baskets interface {
	Get(ctx context.Context, sessionID string) (*domain.Basket, error)
	Clear(ctx context.Context, sessionID string) error
}

type Sessions interface {
	Get(ctx context.Context, sessionID string) (*domain.Selections, error)
	Reset(ctx context.Context, sessionID string) error
}

// Materializer converts basket + checkout selections + a confirmed payment
// into one durable order, exactly once per external transaction id.
type Materializer struct {
	orders   Repository
	baskets  Baskets
	sessions Sessions
	sfg      singleflight.Group // serializes duplicate payment callbacks
}

func NewMaterializer(orders Repository, baskets Baskets, sessions Sessions) *Materializer {
	return &Materializer{
		orders:   orders,
		baskets:  baskets,
		sessions: sessions,
	}
}

// Complete materializes the order for a successful payment confirmation.
// Replays with an already-seen transaction id return the existing order id
// without writing anything. Any failure leaves basket and session
// untouched for a retry.
func (m *Materializer) Complete(ctx context.Context, sessionID string, userID int64, result *domain.PaymentResult) (uuid.UUID, error) {
	v, err, _ := m.sfg.Do(result.TransactionID, func() (interface{}, error) {
		return m.complete(ctx, sessionID, userID, result)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (m *Materializer) complete(ctx context.Context, sessionID string, userID int64, result *domain.PaymentResult) (uuid.UUID, error) {
	// Idempotency check comes first: a replayed callback after the basket
	// was cleared must still resolve to the existing order.
	existing, err := m.orders.GetOrderByKey(ctx, result.TransactionID)
	if err == nil {
		log.Printf("duplicate completion detected for transaction %s, returning order %s", result.TransactionID, existing.ID)
		return existing.ID, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return uuid.Nil, fmt.Errorf("failed to check transaction id: %w", err)
	}

	if !result.Success {
		if result.FailureReason != "" {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, result.FailureReason)
		}
		return uuid.Nil, ErrPaymentDeclined
	}

	basket, err := m.baskets.Get(ctx, sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get basket: %w", err)
	}
	if basket.IsEmpty() {
		return uuid.Nil, checkout.ErrEmptyBasket
	}

	sel, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	if !domain.CanTransitionTo(sel.State, domain.CheckoutStateCompleted) {
		return uuid.Nil, &checkout.StepError{Missing: checkout.StepPayment, Redirect: checkout.StepPayment}
	}

	if basket.Total().Sub(result.Amount).Abs().GreaterThan(amountTolerance) {
		return uuid.Nil, fmt.Errorf("%w: basket total %s, paid %s",
			ErrAmountMismatch, basket.Total(), result.Amount)
	}

	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		FullName:      result.Shipping.FullName,
		Email:         result.PayerEmail,
		Address1:      result.Shipping.Address1,
		Address2:      result.Shipping.Address2,
		PostalCode:    result.Shipping.PostalCode,
		CountryCode:   result.Shipping.CountryCode,
		TotalPaid:     result.Amount,
		OrderKey:      result.TransactionID,
		PaymentOption: result.Method,
		BillingStatus: true,
	}
	for _, line := range basket.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: line.ProductID,
			Title:     line.Title,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	event, err := buildCompletedEvent(order)
	if err != nil {
		return uuid.Nil, err
	}

	if e2 := m.orders.CreateOrder(ctx, order, event); e2 != nil {
		if errors.Is(e2, ErrDuplicateTransaction) {
			// Lost the race against a concurrent duplicate callback.
			winner, e3 := m.orders.GetOrderByKey(ctx, result.TransactionID)
			if e3 != nil {
				return uuid.Nil, fmt.Errorf("failed to load order after duplicate transaction: %w", e3)
			}
			log.Printf("concurrent completion detected for transaction %s, returning order %s", result.TransactionID, winner.ID)
			return winner.ID, nil
		}
		return uuid.Nil, fmt.Errorf("failed to create order: %w", e2)
	}

	// The order is durable; basket and session cleanup failures only cost
	// a replayed callback, which resolves via the idempotency check.
	if e2 := m.baskets.Clear(ctx, sessionID); e2 != nil {
		log.Printf("failed to clear basket after order %s: %v", order.ID, e2)
	}
	if e2 := m.sessions.Reset(ctx, sessionID); e2 != nil {
		log.Printf("failed to reset checkout session after order %s: %v", order.ID, e2)
	}

	return order.ID, nil
}

func buildCompletedEvent(order *domain.Order) (*OutboxEvent, error) {
	payload := map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      order.UserID,
		"items":        order.Items,
		"total_paid":   order.TotalPaid,
		"order_key":    order.OrderKey,
		"completed_at": time.Now(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: order.ID.String(),
		EventType:   EventOrderCompleted,
		Payload:     payloadJSON,
	}, nil
}
