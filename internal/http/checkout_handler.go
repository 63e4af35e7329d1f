package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mvoss/storefront/internal/checkout"
	"github.com/mvoss/storefront/internal/domain"
	"github.com/mvoss/storefront/internal/payment"
)

// CheckoutFlow is the orchestrator surface the handlers call.
// Satisfied by *checkout.Orchestrator.
type CheckoutFlow interface {
	ListDeliveryOptions(ctx context.Context) ([]*domain.DeliveryOption, error)
	SelectDelivery(ctx context.Context, sessionID string, optionID int64) (*checkout.DeliveryQuote, error)
	EnterAddressStep(ctx context.Context, sessionID string, userID int64) (*checkout.AddressStep, error)
	SelectAddress(ctx context.Context, sessionID string, userID int64, addressID string) error
	EnterPaymentStep(ctx context.Context, sessionID string) (*checkout.PaymentContext, error)
	Abandon(ctx context.Context, sessionID string) error
}

// OrderCompleter is the materializer surface the payment callback calls.
// Satisfied by *order.Materializer.
type OrderCompleter interface {
	Complete(ctx context.Context, sessionID string, userID int64, result *domain.PaymentResult) (uuid.UUID, error)
}

type CheckoutHandler struct {
	orchestrator CheckoutFlow
	materializer OrderCompleter
	gateway      payment.Gateway
	timeout      time.Duration
}

func NewCheckoutHandler(orchestrator CheckoutFlow, materializer OrderCompleter, gateway payment.Gateway, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		orchestrator: orchestrator,
		materializer: materializer,
		gateway:      gateway,
		timeout:      timeout,
	}
}

type SelectDeliveryRequestDTO struct {
	DeliveryID int64 `json:"delivery_id"`
}

type SelectAddressRequestDTO struct {
	AddressID string `json:"address_id"`
}

type CompletePaymentRequestDTO struct {
	OrderRef string `json:"order_ref"`
}

type OrderCreatedDTO struct {
	OrderID string `json:"order_id"`
}

// GET /api/v1/checkout/delivery
func (h *CheckoutHandler) ListDeliveryOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	options, err := h.orchestrator.ListDeliveryOptions(ctx)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, options)
}

// POST /api/v1/checkout/delivery
func (h *CheckoutHandler) SelectDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())

	var req SelectDeliveryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.DeliveryID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_delivery_id", "delivery_id must be positive")
		return
	}

	quote, err := h.orchestrator.SelectDelivery(ctx, sessionID, req.DeliveryID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// GET /api/v1/checkout/address
func (h *CheckoutHandler) EnterAddressStep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	step, err := h.orchestrator.EnterAddressStep(ctx, sessionID, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, step)
}

// POST /api/v1/checkout/address
func (h *CheckoutHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req SelectAddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID == "" {
		respondError(w, http.StatusBadRequest, "missing_address_id", "address_id is required")
		return
	}

	if err := h.orchestrator.SelectAddress(ctx, sessionID, userID, req.AddressID); err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SelectAddressRequestDTO{AddressID: req.AddressID})
}

// GET /api/v1/checkout/payment
func (h *CheckoutHandler) EnterPaymentStep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())

	paymentCtx, err := h.orchestrator.EnterPaymentStep(ctx, sessionID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, paymentCtx)
}

// POST /api/v1/checkout/complete
// The payment callback: confirm the gateway order, then materialize it.
func (h *CheckoutHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CompletePaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.OrderRef == "" {
		respondError(w, http.StatusBadRequest, "missing_order_ref", "order_ref is required")
		return
	}

	result, err := h.gateway.Confirm(ctx, req.OrderRef)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	orderID, err := h.materializer.Complete(ctx, sessionID, userID, result)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, OrderCreatedDTO{OrderID: orderID.String()})
}

// POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())
	if err := h.orchestrator.Abandon(ctx, sessionID); err != nil {
		handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
