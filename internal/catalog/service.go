package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service interface {
	// IsPurchasable reports whether a movie can currently be bought by the
	// user: it exists, is not soft-deleted, is not restricted in the user's
	// region and is not already in the user's purchased set. Read-only.
	IsPurchasable(ctx context.Context, userID, movieID uuid.UUID, region string) (Availability, error)
	GetMovie(ctx context.Context, id uuid.UUID) (*Movie, error)
	ListMovies(ctx context.Context) ([]Movie, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) IsPurchasable(ctx context.Context, userID, movieID uuid.UUID, region string) (Availability, error) {
	movie, err := s.repo.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return Availability{Available: false, Reason: ReasonNotFound}, nil
		}
		return Availability{}, fmt.Errorf("service: failed to check movie availability: %w", err)
	}

	if movie.IsDeleted {
		return Availability{Available: false, Reason: ReasonUnavailable}, nil
	}

	if movie.RestrictedIn(region) {
		return Availability{Available: false, Reason: ReasonRegionRestricted}, nil
	}

	owned, err := s.repo.IsOwned(ctx, userID, movieID)
	if err != nil {
		return Availability{}, fmt.Errorf("service: failed to check ownership: %w", err)
	}
	if owned {
		return Availability{Available: false, Reason: ReasonAlreadyOwned}, nil
	}

	return Availability{Available: true}, nil
}

func (s *service) GetMovie(ctx context.Context, id uuid.UUID) (*Movie, error) {
	movie, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("service: failed to get movie: %w", err)
	}

	return movie, nil
}

func (s *service) ListMovies(ctx context.Context) ([]Movie, error) {
	movies, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list movies: %w", err)
	}

	return movies, nil
}
