package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/movie-checkout/internal/catalog"
)

var (
	ErrAlreadyOwned    = errors.New("movie is already owned by the user")
	ErrItemUnavailable = errors.New("movie is not available for purchase")
)

// Gate is the availability check consulted before a movie enters the cart.
type Gate interface {
	IsPurchasable(ctx context.Context, userID, movieID uuid.UUID, region string) (catalog.Availability, error)
}

type Service interface {
	AddItem(ctx context.Context, userID, movieID uuid.UUID, region string) error
	RemoveItem(ctx context.Context, userID, movieID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]DisplayItem, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo Repository
	gate Gate
}

func NewService(repo Repository, gate Gate) Service {
	return &service{repo: repo, gate: gate}
}

func (s *service) AddItem(ctx context.Context, userID, movieID uuid.UUID, region string) error {
	availability, err := s.gate.IsPurchasable(ctx, userID, movieID, region)
	if err != nil {
		return fmt.Errorf("service: failed to check availability: %w", err)
	}

	if !availability.Available {
		switch availability.Reason {
		case catalog.ReasonNotFound:
			return catalog.ErrMovieNotFound
		case catalog.ReasonAlreadyOwned:
			return ErrAlreadyOwned
		default:
			return fmt.Errorf("%w: %s", ErrItemUnavailable, availability.Reason)
		}
	}

	if err := s.repo.Add(ctx, userID, movieID); err != nil {
		if errors.Is(err, ErrAlreadyInCart) {
			return ErrAlreadyInCart
		}
		return fmt.Errorf("service: failed to add cart item: %w", err)
	}

	log.Info().Stringer("user_id", userID).Stringer("movie_id", movieID).Msg("service: movie added to cart")

	return nil
}

// RemoveItem is idempotent: removing a movie that is not in the cart is a no-op.
func (s *service) RemoveItem(ctx context.Context, userID, movieID uuid.UUID) error {
	removed, err := s.repo.Remove(ctx, userID, movieID)
	if err != nil {
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}

	if !removed {
		log.Debug().Stringer("user_id", userID).Stringer("movie_id", movieID).Msg("service: cart item was not present")
	}

	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]DisplayItem, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cart: %w", err)
	}

	return items, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}

	return nil
}
