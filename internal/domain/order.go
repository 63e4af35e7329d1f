package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the durable result of a completed checkout. Shipping fields are
// copied from the payment result, not referenced from mutable address rows,
// so later address edits never alter historical orders.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"user_id"`
	FullName      string          `json:"full_name"`
	Email         string          `json:"email"`
	Address1      string          `json:"address1"`
	Address2      string          `json:"address2"`
	PostalCode    string          `json:"postal_code"`
	CountryCode   string          `json:"country_code"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	OrderKey      string          `json:"order_key"`
	PaymentOption string          `json:"payment_option"`
	BillingStatus bool            `json:"billing_status"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderItem is an immutable snapshot of one basket line at materialization
// time.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// ShippingSnapshot is the shipping data as confirmed by the payment
// gateway.
type ShippingSnapshot struct {
	FullName    string `json:"full_name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

// PaymentResult is the outcome of confirming a payment with the external
// gateway. TransactionID is the idempotency key for order materialization.
type PaymentResult struct {
	Success       bool             `json:"success"`
	TransactionID string           `json:"transaction_id"`
	Amount        decimal.Decimal  `json:"amount"`
	PayerEmail    string           `json:"payer_email"`
	Method        string           `json:"method"`
	Shipping      ShippingSnapshot `json:"shipping"`
	FailureReason string           `json:"failure_reason,omitempty"`
}
