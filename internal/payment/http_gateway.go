package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/mvoss/storefront/internal/domain"
)

// confirmResponse mirrors the gateway's order-capture payload.
type confirmResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	PayerEmail    string `json:"payer_email"`
	Method        string `json:"method"`
	Shipping      struct {
		FullName    string `json:"full_name"`
		Address1    string `json:"address_line_1"`
		Address2    string `json:"admin_area_2"`
		PostalCode  string `json:"postal_code"`
		CountryCode string `json:"country_code"`
	} `json:"shipping"`
	FailureReason string `json:"failure_reason"`
}

type HTTPGateway struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.PaymentResult]
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	settings := gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*domain.PaymentResult](settings),
	}
}

// Confirm captures the gateway order identified by externalRef. The call
// is bounded by the client timeout and guarded by a circuit breaker; a
// declined payment is a successful call with Success=false.
func (g *HTTPGateway) Confirm(ctx context.Context, externalRef string) (*domain.PaymentResult, error) {
	result, err := g.breaker.Execute(func() (*domain.PaymentResult, error) {
		return g.confirm(ctx, externalRef)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}

func (g *HTTPGateway) confirm(ctx context.Context, externalRef string) (*domain.PaymentResult, error) {
	url := fmt.Sprintf("%s/v2/orders/%s/capture", g.baseURL, externalRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build confirm request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: confirm request failed: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var body confirmResponse
	if e2 := json.NewDecoder(resp.Body).Decode(&body); e2 != nil {
		return nil, fmt.Errorf("failed to decode confirm response: %w", e2)
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in confirm response: %w", body.Amount, err)
	}

	return &domain.PaymentResult{
		Success:       body.Status == "COMPLETED",
		TransactionID: body.TransactionID,
		Amount:        amount,
		PayerEmail:    body.PayerEmail,
		Method:        body.Method,
		Shipping: domain.ShippingSnapshot{
			FullName:    body.Shipping.FullName,
			Address1:    body.Shipping.Address1,
			Address2:    body.Shipping.Address2,
			PostalCode:  body.Shipping.PostalCode,
			CountryCode: body.Shipping.CountryCode,
		},
		FailureReason: body.FailureReason,
	}, nil
}
