package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrAlreadyInCart = errors.New("movie is already in the cart")

const uniqueViolation = "23505"

type Repository interface {
	Add(ctx context.Context, userID, movieID uuid.UUID) error
	Remove(ctx context.Context, userID, movieID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]DisplayItem, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, userID, movieID uuid.UUID) error {
	query := `INSERT INTO cart_items (user_id, movie_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, userID, movieID)
	if err != nil {
		// Two sessions of the same user racing on the same insert lose to
		// the primary key, not to each other.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrAlreadyInCart
		}
		return fmt.Errorf("repository: failed to add cart item: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, movieID uuid.UUID) (bool, error) {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND movie_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, movieID)
	if err != nil {
		return false, fmt.Errorf("repository: failed to remove cart item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID uuid.UUID) ([]DisplayItem, error) {
	query := `SELECT ci.movie_id, m.name, m.genre, m.year, m.price, ci.added_at
	          FROM cart_items ci
	          JOIN movies m ON m.id = ci.movie_id
	          WHERE ci.user_id = $1
	          ORDER BY ci.added_at`

	items := make([]DisplayItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("repository: failed to list cart items: %w", err)
	}

	return items, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("repository: failed to clear cart: %w", err)
	}

	return nil
}
