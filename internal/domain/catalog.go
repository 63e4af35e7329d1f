package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// DeliveryOption is a named, flat-priced shipping method. Only active
// options are selectable during checkout.
type DeliveryOption struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}

type Address struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	FullName    string    `json:"full_name"`
	Address1    string    `json:"address1"`
	Address2    string    `json:"address2"`
	PostalCode  string    `json:"postal_code"`
	CountryCode string    `json:"country_code"`
	Default     bool      `json:"default"`
	CreatedAt   time.Time `json:"created_at"`
}
