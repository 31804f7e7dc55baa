package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type buildOrderResponse struct {
	Order            *order.Order            `json:"order"`
	UnavailableItems []order.UnavailableItem `json:"unavailable_items,omitempty"`
}

// Create builds an order from the current cart.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ord, warnings, err := h.svc.Build(ctx, userIDFrom(ctx), regionFrom(ctx))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, buildOrderResponse{Order: ord, UnavailableItems: warnings})
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.svc.ListByUser(ctx, userIDFrom(ctx))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx := r.Context()
	ord, err := h.svc.Get(ctx, orderID, userIDFrom(ctx))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx := r.Context()
	if err := h.svc.Cancel(ctx, orderID, userIDFrom(ctx)); err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "order canceled"})
}

func (h *OrderHandler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx := r.Context()
	if err := h.svc.RequestRefund(ctx, orderID, userIDFrom(ctx)); err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "refund requested"})
}
