package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mvoss/storefront/internal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order, event *OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `INSERT INTO orders
	    (id, user_id, full_name, email, address1, address2, postal_code, country_code,
	     total_paid, order_key, payment_option, billing_status, created_at)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`

	_, insertErr := tx.ExecContext(ctx, orderQuery,
		order.ID,
		order.UserID,
		order.FullName,
		order.Email,
		order.Address1,
		order.Address2,
		order.PostalCode,
		order.CountryCode,
		order.TotalPaid,
		order.OrderKey,
		order.PaymentOption,
		order.BillingStatus)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, title, unit_price, quantity)
	    VALUES ($1, $2, $3, $4, $5)`
	for _, item := range order.Items {
		if _, e2 := tx.ExecContext(ctx, itemQuery,
			order.ID, item.ProductID, item.Title, item.UnitPrice, item.Quantity); e2 != nil {
			return fmt.Errorf("insert order item for product %d: %w", item.ProductID, e2)
		}
	}

	eventQuery := `INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
	    VALUES ($1, $2, $3, $4, NOW())`
	if _, e2 := tx.ExecContext(ctx, eventQuery,
		event.ID, event.AggregateID, event.EventType, event.Payload); e2 != nil {
		return fmt.Errorf("insert outbox event: %w", e2)
	}

	if e2 := tx.Commit(); e2 != nil {
		return fmt.Errorf("commit tx: %w", e2)
	}
	return nil
}

const orderColumns = `id, user_id, full_name, email, address1, address2, postal_code, country_code,
	total_paid, order_key, payment_option, billing_status, created_at`

func (r *PostgresRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.FullName,
		&order.Email,
		&order.Address1,
		&order.Address2,
		&order.PostalCode,
		&order.CountryCode,
		&order.TotalPaid,
		&order.OrderKey,
		&order.PaymentOption,
		&order.BillingStatus,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &order, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, order *domain.Order) error {
	query := `SELECT product_id, title, unit_price, quantity
	    FROM order_items WHERE order_id = $1 ORDER BY product_id`

	rows, err := r.db.QueryContext(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if e2 := rows.Scan(&item.ProductID, &item.Title, &item.UnitPrice, &item.Quantity); e2 != nil {
			return fmt.Errorf("scan order item: %w", e2)
		}
		order.Items = append(order.Items, item)
	}
	if e2 := rows.Err(); e2 != nil {
		return fmt.Errorf("row iteration error: %w", e2)
	}
	return nil
}

func (r *PostgresRepository) GetOrderByKey(ctx context.Context, orderKey string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_key = $1`, orderColumns)

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, orderKey))
	if err != nil {
		return nil, err
	}
	if e2 := r.loadItems(ctx, order); e2 != nil {
		return nil, e2
	}
	return order, nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if e2 := r.loadItems(ctx, order); e2 != nil {
		return nil, e2
	}
	return order, nil
}

func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, orderColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if e2 := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.FullName,
			&order.Email,
			&order.Address1,
			&order.Address2,
			&order.PostalCode,
			&order.CountryCode,
			&order.TotalPaid,
			&order.OrderKey,
			&order.PaymentOption,
			&order.BillingStatus,
			&order.CreatedAt,
		); e2 != nil {
			return nil, fmt.Errorf("scan order row: %w", e2)
		}
		orders = append(orders, &order)
	}
	if e2 := rows.Err(); e2 != nil {
		return nil, fmt.Errorf("row iteration error: %w", e2)
	}

	for _, order := range orders {
		if e2 := r.loadItems(ctx, order); e2 != nil {
			return nil, e2
		}
	}
	return orders, nil
}

func (r *PostgresRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	    FROM outbox_events
	    WHERE processed_at IS NULL
	    ORDER BY created_at
	    LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if e2 := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.Payload, &event.CreatedAt); e2 != nil {
			return nil, fmt.Errorf("scan outbox event: %w", e2)
		}
		events = append(events, &event)
	}
	if e2 := rows.Err(); e2 != nil {
		return nil, fmt.Errorf("row iteration error: %w", e2)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
