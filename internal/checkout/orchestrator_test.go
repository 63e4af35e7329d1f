package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvoss/storefront/internal/address"
	"github.com/mvoss/storefront/internal/delivery"
	"github.com/mvoss/storefront/internal/domain"
)

type mockBaskets struct {
	m      sync.RWMutex
	basket *domain.Basket
	err    error
}

func (m *mockBaskets) Get(context.Context, string) (*domain.Basket, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.basket, nil
}

func (m *mockBaskets) SetDeliveryPrice(_ context.Context, _ string, price decimal.Decimal) (*domain.Basket, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.basket.DeliveryPrice = price
	return m.basket, nil
}

func (m *mockBaskets) Clear(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.basket.Lines = nil
	m.basket.DeliveryPrice = decimal.Zero
	return nil
}

type mockSessions struct {
	m   sync.RWMutex
	sel *domain.Selections
	err error
}

func (m *mockSessions) Get(context.Context, string) (*domain.Selections, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.sel == nil {
		return domain.NewSelections(), nil
	}
	cp := *m.sel
	return &cp, nil
}

func (m *mockSessions) Save(_ context.Context, _ string, sel *domain.Selections) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sel = sel
	return nil
}

func (m *mockSessions) Reset(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.sel = nil
	return m.err
}

func (m *mockSessions) getSelections() *domain.Selections {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.sel
}

type mockDeliveries struct {
	options []*domain.DeliveryOption
}

func (m *mockDeliveries) ListActive(context.Context) ([]*domain.DeliveryOption, error) {
	return m.options, nil
}

func (m *mockDeliveries) GetActive(_ context.Context, id int64) (*domain.DeliveryOption, error) {
	for _, o := range m.options {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, delivery.ErrOptionNotFound
}

type mockAddresses struct {
	addresses []*domain.Address
}

func (m *mockAddresses) ListForUser(_ context.Context, userID int64) ([]*domain.Address, error) {
	var out []*domain.Address
	for _, a := range m.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAddresses) GetForUser(_ context.Context, id string, userID int64) (*domain.Address, error) {
	for _, a := range m.addresses {
		if a.ID == id && a.UserID == userID {
			return a, nil
		}
	}
	return nil, address.ErrAddressNotFound
}

func filledBasket() *domain.Basket {
	return &domain.Basket{
		SessionID: "sess-1",
		Lines: []domain.Line{
			{ProductID: 1, UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2},
		},
		DeliveryPrice: decimal.Zero,
	}
}

func standardOptions() *mockDeliveries {
	return &mockDeliveries{options: []*domain.DeliveryOption{
		{ID: 1, Name: "Standard", Price: decimal.RequireFromString("3.50"), Active: true},
		{ID: 2, Name: "Express", Price: decimal.RequireFromString("7.50"), Active: true},
	}}
}

func userAddresses() *mockAddresses {
	return &mockAddresses{addresses: []*domain.Address{
		{ID: "addr-default", UserID: 1, FullName: "M Voss", Default: true},
		{ID: "addr-other", UserID: 1, FullName: "M Voss"},
		{ID: "addr-foreign", UserID: 2, FullName: "Someone Else"},
	}}
}

func TestSelectDelivery_AppliesPriceAndRecordsChoice(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	quote, err := sut.SelectDelivery(context.Background(), "sess-1", 2)
	require.NoError(t, err)

	assert.True(t, quote.DeliveryPrice.Equal(decimal.RequireFromString("7.50")))
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("28.50")))

	sel := sessions.getSelections()
	require.NotNil(t, sel)
	assert.Equal(t, domain.CheckoutStateDeliverySelected, sel.State)
	require.NotNil(t, sel.DeliveryID)
	assert.Equal(t, int64(2), *sel.DeliveryID)
}

func TestSelectDelivery_EmptyBasket(t *testing.T) {
	baskets := &mockBaskets{basket: &domain.Basket{SessionID: "sess-1"}}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.SelectDelivery(context.Background(), "sess-1", 1)
	require.ErrorIs(t, err, ErrEmptyBasket)
	assert.Nil(t, sessions.getSelections())
}

func TestSelectDelivery_UnknownOptionLeavesSelectionUnset(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.SelectDelivery(context.Background(), "sess-1", 999)
	require.ErrorIs(t, err, delivery.ErrOptionNotFound)
	assert.Nil(t, sessions.getSelections())
	assert.True(t, baskets.basket.DeliveryPrice.IsZero())
}

func TestSelectDelivery_ReSelectionReplacesPrice(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.SelectDelivery(context.Background(), "sess-1", 1)
	require.NoError(t, err)
	quote, err := sut.SelectDelivery(context.Background(), "sess-1", 2)
	require.NoError(t, err)

	assert.True(t, quote.DeliveryPrice.Equal(decimal.RequireFromString("7.50")))
	assert.Equal(t, int64(2), *sessions.getSelections().DeliveryID)
}

func TestSelectDelivery_AfterCompletion(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{sel: &domain.Selections{State: domain.CheckoutStateCompleted}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.SelectDelivery(context.Background(), "sess-1", 1)
	require.ErrorIs(t, err, ErrCheckoutCompleted)
}

func TestEnterAddressStep_WithoutDeliveryRedirects(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.EnterAddressStep(context.Background(), "sess-1", 1)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepDelivery, stepErr.Redirect)
}

func TestEnterAddressStep_PreselectsDefaultWithoutSaving(t *testing.T) {
	deliveryID := int64(1)
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateDeliverySelected,
		DeliveryID: &deliveryID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	step, err := sut.EnterAddressStep(context.Background(), "sess-1", 1)
	require.NoError(t, err)

	assert.Len(t, step.Addresses, 2)
	require.NotNil(t, step.Preselected)
	assert.Equal(t, "addr-default", *step.Preselected)

	// Previewing is not choosing: the session must not record an address.
	assert.Nil(t, sessions.getSelections().AddressID)
}

func TestEnterAddressStep_KeepsConfirmedChoicePreselected(t *testing.T) {
	deliveryID := int64(1)
	addressID := "addr-other"
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateAddressSelected,
		DeliveryID: &deliveryID,
		AddressID:  &addressID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	step, err := sut.EnterAddressStep(context.Background(), "sess-1", 1)
	require.NoError(t, err)
	require.NotNil(t, step.Preselected)
	assert.Equal(t, "addr-other", *step.Preselected)
}

func TestSelectAddress_Confirms(t *testing.T) {
	deliveryID := int64(1)
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateDeliverySelected,
		DeliveryID: &deliveryID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	err := sut.SelectAddress(context.Background(), "sess-1", 1, "addr-other")
	require.NoError(t, err)

	sel := sessions.getSelections()
	assert.Equal(t, domain.CheckoutStateAddressSelected, sel.State)
	require.NotNil(t, sel.AddressID)
	assert.Equal(t, "addr-other", *sel.AddressID)
}

func TestSelectAddress_ForeignAddressRejected(t *testing.T) {
	deliveryID := int64(1)
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateDeliverySelected,
		DeliveryID: &deliveryID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	err := sut.SelectAddress(context.Background(), "sess-1", 1, "addr-foreign")
	require.ErrorIs(t, err, address.ErrAddressNotFound)
	assert.Nil(t, sessions.getSelections().AddressID)
}

func TestSelectAddress_WithoutDeliveryRedirects(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	err := sut.SelectAddress(context.Background(), "sess-1", 1, "addr-default")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepDelivery, stepErr.Redirect)
}

func TestEnterPaymentStep_Success(t *testing.T) {
	deliveryID := int64(2)
	addressID := "addr-default"
	b := filledBasket()
	b.DeliveryPrice = decimal.RequireFromString("7.50")
	baskets := &mockBaskets{basket: b}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateAddressSelected,
		DeliveryID: &deliveryID,
		AddressID:  &addressID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	pc, err := sut.EnterPaymentStep(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.True(t, pc.Subtotal.Equal(decimal.RequireFromString("21.00")))
	assert.True(t, pc.DeliveryPrice.Equal(decimal.RequireFromString("7.50")))
	assert.True(t, pc.Total.Equal(decimal.RequireFromString("28.50")))
	assert.Equal(t, int64(2), pc.DeliveryID)
	assert.Equal(t, "addr-default", pc.AddressID)
	assert.Equal(t, domain.CheckoutStatePaymentPending, sessions.getSelections().State)
}

func TestEnterPaymentStep_MissingAddressRedirects(t *testing.T) {
	deliveryID := int64(1)
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateDeliverySelected,
		DeliveryID: &deliveryID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.EnterPaymentStep(context.Background(), "sess-1")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepAddress, stepErr.Redirect)
}

func TestEnterPaymentStep_MissingDeliveryRedirectsFirst(t *testing.T) {
	baskets := &mockBaskets{basket: filledBasket()}
	sessions := &mockSessions{}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.EnterPaymentStep(context.Background(), "sess-1")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepDelivery, stepErr.Redirect)
}

func TestEnterPaymentStep_EmptiedBasket(t *testing.T) {
	deliveryID := int64(1)
	addressID := "addr-default"
	baskets := &mockBaskets{basket: &domain.Basket{SessionID: "sess-1"}}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateAddressSelected,
		DeliveryID: &deliveryID,
		AddressID:  &addressID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	_, err := sut.EnterPaymentStep(context.Background(), "sess-1")
	require.ErrorIs(t, err, ErrEmptyBasket)
}

func TestAbandon_ClearsBasketAndSelections(t *testing.T) {
	deliveryID := int64(1)
	b := filledBasket()
	b.DeliveryPrice = decimal.RequireFromString("3.50")
	baskets := &mockBaskets{basket: b}
	sessions := &mockSessions{sel: &domain.Selections{
		State:      domain.CheckoutStateDeliverySelected,
		DeliveryID: &deliveryID,
	}}

	sut := NewOrchestrator(baskets, sessions, standardOptions(), userAddresses())
	err := sut.Abandon(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Empty(t, baskets.basket.Lines)
	assert.True(t, baskets.basket.DeliveryPrice.IsZero())
	assert.Nil(t, sessions.getSelections())
}
