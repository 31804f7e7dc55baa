package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	regionKey contextKey = "region"
)

// Auth trusts the opaque verified user id supplied by the identity
// collaborator in X-User-ID, in the same way an API gateway would inject it.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			respondWithError(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid user identity")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, regionKey, r.Header.Get("X-User-Region"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

func regionFrom(ctx context.Context) string {
	region, _ := ctx.Value(regionKey).(string)
	return region
}
