package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vasiliy-maslov/movie-checkout/internal/cart"
)

type CartHandler struct {
	svc cart.Service
}

func NewCartHandler(svc cart.Service) *CartHandler {
	return &CartHandler{svc: svc}
}

type addItemRequest struct {
	MovieID uuid.UUID `json:"movie_id"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MovieID == uuid.Nil {
		respondWithError(w, http.StatusBadRequest, "movie_id is required")
		return
	}

	ctx := r.Context()
	if err := h.svc.AddItem(ctx, userIDFrom(ctx), req.MovieID, regionFrom(ctx)); err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "movie added to cart"})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	movieID, err := uuid.Parse(chi.URLParam(r, "movieID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid movie id")
		return
	}

	ctx := r.Context()
	if err := h.svc.RemoveItem(ctx, userIDFrom(ctx), movieID); err != nil {
		respondWithMappedError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.svc.List(ctx, userIDFrom(ctx))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.Clear(ctx, userIDFrom(ctx)); err != nil {
		respondWithMappedError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
