package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vasiliy-maslov/movie-checkout/internal/catalog"
)

type MovieHandler struct {
	svc catalog.Service
}

func NewMovieHandler(svc catalog.Service) *MovieHandler {
	return &MovieHandler{svc: svc}
}

func (h *MovieHandler) List(w http.ResponseWriter, r *http.Request) {
	movies, err := h.svc.ListMovies(r.Context())
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"movies": movies})
}

func (h *MovieHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	movieID, err := uuid.Parse(chi.URLParam(r, "movieID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid movie id")
		return
	}

	movie, err := h.svc.GetMovie(r.Context(), movieID)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, movie)
}
