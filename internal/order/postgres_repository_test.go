package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mvoss/storefront/internal/domain"
	"github.com/mvoss/storefront/internal/postgres"
)

func setupTestDB(t *testing.T) (*PostgresRepository, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := postgres.Connect(&postgres.Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)

	err = postgres.RunMigrations(db, "../../migrations")
	require.NoError(t, err)

	repo := NewPostgresRepository(db)

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newTestOrder(orderKey string) *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		UserID:        1,
		FullName:      "M Voss",
		Email:         "buyer@example.com",
		Address1:      "1 Main St",
		PostalCode:    "12345",
		CountryCode:   "DE",
		TotalPaid:     decimal.RequireFromString("28.50"),
		OrderKey:      orderKey,
		PaymentOption: "paypal",
		BillingStatus: true,
		Items: []domain.OrderItem{
			{ProductID: 1, Title: "Blue Hoodie", UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2},
			{ProductID: 2, Title: "Black Cap", UnitPrice: decimal.RequireFromString("7.50"), Quantity: 1},
		},
	}
}

func newTestEvent(order *domain.Order) *OutboxEvent {
	payload, _ := json.Marshal(map[string]interface{}{"order_id": order.ID})
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: order.ID.String(),
		EventType:   EventOrderCompleted,
		Payload:     payload,
	}
}

func TestCreateOrder_Success(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("T-100")

	err := repo.CreateOrder(ctx, order, newTestEvent(order))
	require.NoError(t, err)

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, order.UserID, fetched.UserID)
	assert.Equal(t, order.FullName, fetched.FullName)
	assert.Equal(t, order.Email, fetched.Email)
	assert.Equal(t, order.OrderKey, fetched.OrderKey)
	assert.Equal(t, order.PaymentOption, fetched.PaymentOption)
	assert.True(t, fetched.BillingStatus)
	assert.True(t, fetched.TotalPaid.Equal(order.TotalPaid))
	require.Len(t, fetched.Items, 2)
	assert.Equal(t, order.Items[0].ProductID, fetched.Items[0].ProductID)
	assert.True(t, fetched.Items[0].UnitPrice.Equal(order.Items[0].UnitPrice))
}

func TestCreateOrder_WritesOutboxEventAtomically(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("T-101")
	event := newTestEvent(order)

	require.NoError(t, repo.CreateOrder(ctx, order, event))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
	assert.Equal(t, EventOrderCompleted, events[0].EventType)
}

func TestCreateOrder_DuplicateTransaction(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	order1 := newTestOrder("T-102")
	require.NoError(t, repo.CreateOrder(ctx, order1, newTestEvent(order1)))

	order2 := newTestOrder("T-102") // same order key
	err := repo.CreateOrder(ctx, order2, newTestEvent(order2))
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	// The losing transaction must leave no rows behind.
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGetOrderByKey(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("T-103")
	require.NoError(t, repo.CreateOrder(ctx, order, newTestEvent(order)))

	fetched, err := repo.GetOrderByKey(ctx, "T-103")
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Len(t, fetched.Items, 2)

	_, err = repo.GetOrderByKey(ctx, "T-missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrderByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersByUser(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	order1 := newTestOrder("T-104")
	require.NoError(t, repo.CreateOrder(ctx, order1, newTestEvent(order1)))

	// Small sleep to ensure different created_at timestamps
	time.Sleep(10 * time.Millisecond)

	order2 := newTestOrder("T-105")
	require.NoError(t, repo.CreateOrder(ctx, order2, newTestEvent(order2)))

	orders, err := repo.ListOrdersByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	// Newest first
	assert.Equal(t, order2.ID, orders[0].ID)
	assert.Equal(t, order1.ID, orders[1].ID)

	orders, err = repo.ListOrdersByUser(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMarkEventProcessed(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("T-106")
	event := newTestEvent(order)
	require.NoError(t, repo.CreateOrder(ctx, order, event))

	require.NoError(t, repo.MarkEventProcessed(ctx, event.ID))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
