package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vasiliy-maslov/movie-checkout/internal/payment"
)

type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Start opens a payment session for a pending order. The client completes the
// payment out-of-band at the returned payment URL.
func (h *PaymentHandler) Start(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx := r.Context()
	attempt, err := h.svc.Start(ctx, orderID, userIDFrom(ctx))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, attempt)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attempts, err := h.svc.ListByUser(ctx, userIDFrom(ctx))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"payments": attempts})
}
