package cart

import (
	"time"

	"github.com/google/uuid"
)

type Item struct {
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	MovieID uuid.UUID `json:"movie_id" db:"movie_id"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// DisplayItem is a cart row joined with the catalog fields the client shows.
type DisplayItem struct {
	MovieID uuid.UUID `json:"movie_id" db:"movie_id"`
	Name    string    `json:"name" db:"name"`
	Genre   string    `json:"genre" db:"genre"`
	Year    int       `json:"year" db:"year"`
	Price   float64   `json:"price" db:"price"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}
