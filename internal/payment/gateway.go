package payment

import (
	"context"
	"errors"

	"github.com/mvoss/storefront/internal/domain"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway confirms an externally created payment. Opaque beyond this
// contract: authorize payment, return success/failure plus the external
// reference.
type Gateway interface {
	Confirm(ctx context.Context, externalRef string) (*domain.PaymentResult, error)
}
