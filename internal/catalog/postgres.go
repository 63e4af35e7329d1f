package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvoss/storefront/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetProduct returns an active product. Inactive products are not
// purchasable and are reported as not found.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, title, price, active, created_at
		FROM products
		WHERE id = $1 AND active = TRUE
	`

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Title,
		&p.Price,
		&p.Active,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, title, price, active, created_at
		FROM products
		WHERE active = TRUE
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		if e2 := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Active, &p.CreatedAt); e2 != nil {
			return nil, fmt.Errorf("failed to scan product: %w", e2)
		}
		products = append(products, p)
	}
	if e2 := rows.Err(); e2 != nil {
		return nil, fmt.Errorf("row iteration error: %w", e2)
	}

	return products, nil
}
