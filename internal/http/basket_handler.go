package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mvoss/storefront/internal/domain"
)

// BasketService is the basket API surface the handlers call.
// Satisfied by *basket.Service.
type BasketService interface {
	Get(ctx context.Context, sessionID string) (*domain.Basket, error)
	Add(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Basket, error)
	Update(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Basket, error)
	Remove(ctx context.Context, sessionID string, productID int64) (*domain.Basket, error)
}

type BasketHandler struct {
	baskets BasketService
	timeout time.Duration
}

func NewBasketHandler(baskets BasketService, timeout time.Duration) *BasketHandler {
	return &BasketHandler{
		baskets: baskets,
		timeout: timeout,
	}
}

type AddLineRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateLineRequestDTO struct {
	Quantity int `json:"quantity"`
}

type LineDTO struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type BasketDTO struct {
	Lines         []LineDTO       `json:"lines"`
	TotalItems    int             `json:"total_items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
	Total         decimal.Decimal `json:"total"`
}

type LineCountDTO struct {
	TotalItems int `json:"total_items"`
}

type LineCountSubtotalDTO struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

func toBasketDTO(b *domain.Basket) BasketDTO {
	dto := BasketDTO{
		Lines:         make([]LineDTO, 0, len(b.Lines)),
		TotalItems:    b.ItemCount(),
		Subtotal:      b.Subtotal(),
		DeliveryPrice: b.DeliveryPrice,
		Total:         b.Total(),
	}
	for _, l := range b.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ProductID: l.ProductID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		})
	}
	return dto
}

// GET /api/v1/basket
func (h *BasketHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())
	b, err := h.baskets.Get(ctx, sessionID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toBasketDTO(b))
}

// POST /api/v1/basket/items
func (h *BasketHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	b, err := h.baskets.Add(ctx, sessionID, req.ProductID, req.Quantity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, LineCountDTO{TotalItems: b.ItemCount()})
}

// PUT /api/v1/basket/items/{product_id}
func (h *BasketHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateLineRequestDTO
	if e2 := json.NewDecoder(r.Body).Decode(&req); e2 != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	b, err := h.baskets.Update(ctx, sessionID, productID, req.Quantity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, LineCountSubtotalDTO{
		TotalItems: b.ItemCount(),
		Subtotal:   b.Subtotal(),
	})
}

// DELETE /api/v1/basket/items/{product_id}
func (h *BasketHandler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionIDFromContext(r.Context())

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	b, err := h.baskets.Remove(ctx, sessionID, productID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, LineCountSubtotalDTO{
		TotalItems: b.ItemCount(),
		Subtotal:   b.Subtotal(),
	})
}
