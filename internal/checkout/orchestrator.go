package checkout

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/mvoss/storefront/internal/domain"
)

// BasketService is the slice of the basket API the orchestrator needs.
type BasketService interface {
	Get(ctx context.Context, sessionID string) (*domain.Basket, error)
	SetDeliveryPrice(ctx context.Context, sessionID string, price decimal.Decimal) (*domain.Basket, error)
	Clear(ctx context.Context, sessionID string) error
}

type DeliveryOptions interface {
	ListActive(ctx context.Context) ([]*domain.DeliveryOption, error)
	GetActive(ctx context.Context, id int64) (*domain.DeliveryOption, error)
}

type AddressBook interface {
	ListForUser(ctx context.Context, userID int64) ([]*domain.Address, error)
	GetForUser(ctx context.Context, id string, userID int64) (*domain.Address, error)
}

// Orchestrator enforces the checkout step sequence
// (delivery → address → payment → confirmation). It holds no business data
// itself beyond reading and writing the checkout session.
type Orchestrator struct {
	baskets    BasketService
	sessions   SessionStore
	deliveries DeliveryOptions
	addresses  AddressBook
}

func NewOrchestrator(baskets BasketService, sessions SessionStore, deliveries DeliveryOptions, addresses AddressBook) *Orchestrator {
	return &Orchestrator{
		baskets:    baskets,
		sessions:   sessions,
		deliveries: deliveries,
		addresses:  addresses,
	}
}

type DeliveryQuote struct {
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
	Total         decimal.Decimal `json:"total"`
}

type AddressStep struct {
	Addresses   []*domain.Address `json:"addresses"`
	Preselected *string           `json:"preselected_address_id,omitempty"`
}

type PaymentContext struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
	Total         decimal.Decimal `json:"total"`
	DeliveryID    int64           `json:"delivery_id"`
	AddressID     string          `json:"address_id"`
}

func (o *Orchestrator) ListDeliveryOptions(ctx context.Context) ([]*domain.DeliveryOption, error) {
	return o.deliveries.ListActive(ctx)
}

// SelectDelivery applies an active delivery option's price to the basket
// and records the choice. This is the only writer of the delivery
// selection. Requires a non-empty basket.
func (o *Orchestrator) SelectDelivery(ctx context.Context, sessionID string, optionID int64) (*DeliveryQuote, error) {
	basket, err := o.baskets.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}
	if basket.IsEmpty() {
		return nil, ErrEmptyBasket
	}

	sel, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	if !domain.CanTransitionTo(sel.State, domain.CheckoutStateDeliverySelected) {
		return nil, ErrCheckoutCompleted
	}

	option, err := o.deliveries.GetActive(ctx, optionID)
	if err != nil {
		return nil, err
	}

	basket, err = o.baskets.SetDeliveryPrice(ctx, sessionID, option.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to apply delivery price: %w", err)
	}

	sel.DeliveryID = &option.ID
	sel.State = domain.CheckoutStateDeliverySelected
	if e2 := o.sessions.Save(ctx, sessionID, sel); e2 != nil {
		return nil, fmt.Errorf("failed to save checkout session: %w", e2)
	}

	return &DeliveryQuote{
		DeliveryPrice: option.Price,
		Total:         basket.Total(),
	}, nil
}

// EnterAddressStep guards the address page. Without a delivery selection
// the caller is redirected back to delivery. The default (or first)
// address is preselected as a convenience, not recorded as a confirmed
// choice.
func (o *Orchestrator) EnterAddressStep(ctx context.Context, sessionID string, userID int64) (*AddressStep, error) {
	sel, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	if sel.DeliveryID == nil {
		return nil, &StepError{Missing: StepDelivery, Redirect: StepDelivery}
	}

	addresses, err := o.addresses.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	step := &AddressStep{Addresses: addresses}
	if sel.AddressID != nil {
		step.Preselected = sel.AddressID
	} else if len(addresses) > 0 {
		// ListForUser orders the default address first.
		step.Preselected = &addresses[0].ID
	}
	return step, nil
}

// SelectAddress confirms an address belonging to the requesting user.
func (o *Orchestrator) SelectAddress(ctx context.Context, sessionID string, userID int64, addressID string) error {
	sel, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get checkout session: %w", err)
	}
	if sel.DeliveryID == nil {
		return &StepError{Missing: StepDelivery, Redirect: StepDelivery}
	}
	if !domain.CanTransitionTo(sel.State, domain.CheckoutStateAddressSelected) {
		return ErrCheckoutCompleted
	}

	addr, err := o.addresses.GetForUser(ctx, addressID, userID)
	if err != nil {
		return err
	}

	sel.AddressID = &addr.ID
	sel.State = domain.CheckoutStateAddressSelected
	if e2 := o.sessions.Save(ctx, sessionID, sel); e2 != nil {
		return fmt.Errorf("failed to save checkout session: %w", e2)
	}
	return nil
}

// EnterPaymentStep guards the payment page and moves the checkout to
// PAYMENT_PENDING. Without a confirmed address the caller is redirected
// back to address selection.
func (o *Orchestrator) EnterPaymentStep(ctx context.Context, sessionID string) (*PaymentContext, error) {
	sel, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	if sel.DeliveryID == nil {
		return nil, &StepError{Missing: StepDelivery, Redirect: StepDelivery}
	}
	if sel.AddressID == nil {
		return nil, &StepError{Missing: StepAddress, Redirect: StepAddress}
	}
	if !domain.CanTransitionTo(sel.State, domain.CheckoutStatePaymentPending) {
		return nil, ErrCheckoutCompleted
	}

	basket, err := o.baskets.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}
	if basket.IsEmpty() {
		return nil, ErrEmptyBasket
	}

	if sel.State != domain.CheckoutStatePaymentPending {
		sel.State = domain.CheckoutStatePaymentPending
		if e2 := o.sessions.Save(ctx, sessionID, sel); e2 != nil {
			return nil, fmt.Errorf("failed to save checkout session: %w", e2)
		}
	}

	return &PaymentContext{
		Subtotal:      basket.Subtotal(),
		DeliveryPrice: basket.DeliveryPrice,
		Total:         basket.Total(),
		DeliveryID:    *sel.DeliveryID,
		AddressID:     *sel.AddressID,
	}, nil
}

// Abandon cancels the checkout: basket emptied, selections cleared, no
// durable writes.
func (o *Orchestrator) Abandon(ctx context.Context, sessionID string) error {
	if err := o.baskets.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear basket: %w", err)
	}
	if err := o.sessions.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset checkout session: %w", err)
	}
	log.Printf("checkout abandoned for session %s", sessionID)
	return nil
}
