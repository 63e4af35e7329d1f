package address

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvoss/storefront/internal/domain"
)

var ErrAddressNotFound = errors.New("address not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListForUser returns the user's addresses with the default address first.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]*domain.Address, error) {
	query := `
		SELECT id, user_id, full_name, address1, address2, postal_code, country_code, is_default, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*domain.Address
	for rows.Next() {
		a := &domain.Address{}
		if e2 := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.FullName,
			&a.Address1,
			&a.Address2,
			&a.PostalCode,
			&a.CountryCode,
			&a.Default,
			&a.CreatedAt,
		); e2 != nil {
			return nil, fmt.Errorf("failed to scan address: %w", e2)
		}
		addresses = append(addresses, a)
	}
	if e2 := rows.Err(); e2 != nil {
		return nil, fmt.Errorf("row iteration error: %w", e2)
	}

	return addresses, nil
}

// GetForUser returns the address only when it belongs to the user.
func (r *Repository) GetForUser(ctx context.Context, id string, userID int64) (*domain.Address, error) {
	query := `
		SELECT id, user_id, full_name, address1, address2, postal_code, country_code, is_default, created_at
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`

	a := &domain.Address{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&a.ID,
		&a.UserID,
		&a.FullName,
		&a.Address1,
		&a.Address2,
		&a.PostalCode,
		&a.CountryCode,
		&a.Default,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query address: %w", err)
	}

	return a, nil
}
