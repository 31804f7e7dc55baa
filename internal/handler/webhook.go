package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/movie-checkout/internal/payment"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type WebhookHandler struct {
	svc    payment.Service
	secret string
}

func NewWebhookHandler(svc payment.Service, secret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: secret}
}

// Handle processes a provider webhook. The response status tells the provider
// what to do next: 2xx means processed (including duplicates and orphans,
// which must not be retried), 4xx means do not retry, 5xx means retry later.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get(payment.SignatureHeader)
	if !payment.VerifySignature(h.secret, body, signature) {
		// Rejected before any state is touched.
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("handler: webhook signature verification failed")
		respondWithError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var evt payment.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if evt.ID == "" || evt.ExternalRef == "" || !validEventType(evt.Type) {
		respondWithError(w, http.StatusBadRequest, "missing or invalid event fields")
		return
	}

	result, err := h.svc.HandleEvent(r.Context(), evt)
	if err != nil {
		// Transient: the provider is expected to redeliver.
		log.Error().Err(err).Str("event_id", evt.ID).Msg("handler: webhook processing failed")
		respondWithError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(result.Outcome)})
}

func validEventType(t payment.EventType) bool {
	switch t {
	case payment.EventSuccess, payment.EventFailure, payment.EventCancellation, payment.EventRefund:
		return true
	}
	return false
}
