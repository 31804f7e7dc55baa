package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrMovieNotFound = errors.New("movie not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Movie, error)
	List(ctx context.Context) ([]Movie, error)
	IsOwned(ctx context.Context, userID, movieID uuid.UUID) (bool, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Movie, error) {
	var movie Movie
	query := `SELECT id, name, genre, year, price, is_deleted, restricted_regions, created_at, updated_at
	          FROM movies WHERE id = $1`
	err := r.db.GetContext(ctx, &movie, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("repository: failed to get movie by id %s: %w", id, err)
	}

	return &movie, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Movie, error) {
	query := `SELECT id, name, genre, year, price, is_deleted, restricted_regions, created_at, updated_at
	          FROM movies WHERE is_deleted = FALSE ORDER BY name`
	movies := make([]Movie, 0)
	if err := r.db.SelectContext(ctx, &movies, query); err != nil {
		return nil, fmt.Errorf("repository: failed to list movies: %w", err)
	}

	return movies, nil
}

func (r *PostgresRepository) IsOwned(ctx context.Context, userID, movieID uuid.UUID) (bool, error) {
	var owned bool
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND movie_id = $2)`
	if err := r.db.GetContext(ctx, &owned, query, userID, movieID); err != nil {
		return false, fmt.Errorf("repository: failed to check purchase for user %s movie %s: %w", userID, movieID, err)
	}

	return owned, nil
}
