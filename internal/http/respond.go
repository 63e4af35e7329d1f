package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mvoss/storefront/internal/address"
	"github.com/mvoss/storefront/internal/basket"
	"github.com/mvoss/storefront/internal/catalog"
	"github.com/mvoss/storefront/internal/checkout"
	"github.com/mvoss/storefront/internal/delivery"
	"github.com/mvoss/storefront/internal/order"
	"github.com/mvoss/storefront/internal/payment"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// stepRedirect recovers out-of-order checkout navigation by pointing the
// caller at the prerequisite step instead of failing.
func stepRedirect(w http.ResponseWriter, r *http.Request, stepErr *checkout.StepError) {
	var location string
	switch stepErr.Redirect {
	case checkout.StepDelivery:
		location = "/api/v1/checkout/delivery"
	case checkout.StepAddress:
		location = "/api/v1/checkout/address"
	default:
		location = "/api/v1/checkout/payment"
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// handleDomainError maps service errors onto the HTTP surface.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var stepErr *checkout.StepError
	if errors.As(err, &stepErr) {
		stepRedirect(w, r, stepErr)
		return
	}

	switch {
	case errors.Is(err, basket.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, delivery.ErrOptionNotFound):
		respondError(w, http.StatusNotFound, "delivery_option_not_found", err.Error())
	case errors.Is(err, address.ErrAddressNotFound):
		respondError(w, http.StatusNotFound, "address_not_found", err.Error())
	case errors.Is(err, checkout.ErrEmptyBasket):
		respondError(w, http.StatusConflict, "empty_basket", err.Error())
	case errors.Is(err, checkout.ErrCheckoutCompleted):
		respondError(w, http.StatusConflict, "checkout_completed", err.Error())
	case errors.Is(err, order.ErrAmountMismatch):
		respondError(w, http.StatusConflict, "amount_mismatch", err.Error())
	case errors.Is(err, order.ErrPaymentDeclined):
		respondError(w, http.StatusPaymentRequired, "payment_declined", err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		respondError(w, http.StatusServiceUnavailable, "gateway_unavailable", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
