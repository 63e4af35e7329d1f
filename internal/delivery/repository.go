package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvoss/storefront/internal/domain"
)

var ErrOptionNotFound = errors.New("delivery option not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListActive(ctx context.Context) ([]*domain.DeliveryOption, error) {
	query := `
		SELECT id, name, price, active
		FROM delivery_options
		WHERE active = TRUE
		ORDER BY price, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery options: %w", err)
	}
	defer rows.Close()

	var opts []*domain.DeliveryOption
	for rows.Next() {
		o := &domain.DeliveryOption{}
		if e2 := rows.Scan(&o.ID, &o.Name, &o.Price, &o.Active); e2 != nil {
			return nil, fmt.Errorf("failed to scan delivery option: %w", e2)
		}
		opts = append(opts, o)
	}
	if e2 := rows.Err(); e2 != nil {
		return nil, fmt.Errorf("row iteration error: %w", e2)
	}

	return opts, nil
}

// GetActive returns an active delivery option; missing and inactive ids
// are both reported as not found.
func (r *Repository) GetActive(ctx context.Context, id int64) (*domain.DeliveryOption, error) {
	query := `
		SELECT id, name, price, active
		FROM delivery_options
		WHERE id = $1 AND active = TRUE
	`

	o := &domain.DeliveryOption{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.Name, &o.Price, &o.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery option: %w", err)
	}

	return o, nil
}
