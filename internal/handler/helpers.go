package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/movie-checkout/internal/cart"
	"github.com/vasiliy-maslov/movie-checkout/internal/catalog"
	"github.com/vasiliy-maslov/movie-checkout/internal/order"
	"github.com/vasiliy-maslov/movie-checkout/internal/payment"
)

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, catalog.ErrMovieNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrAlreadyInCart),
		errors.Is(err, cart.ErrAlreadyOwned),
		errors.Is(err, order.ErrDuplicateOrder),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, payment.ErrInvalidState),
		errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrPaymentInProgress):
		return http.StatusConflict
	case errors.Is(err, cart.ErrItemUnavailable),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrNoPurchasableItems),
		errors.Is(err, payment.ErrStaleTotal):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrGatewayUnavailable),
		errors.Is(err, order.ErrRefundGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithMappedError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("handler: internal error")
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}
