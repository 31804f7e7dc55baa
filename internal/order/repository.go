package order

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoPurchasableItems = errors.New("no purchasable items remain in the cart")
	ErrDuplicateOrder     = errors.New("an unpaid order for the same items already exists")
)

type Repository interface {
	BuildFromCart(ctx context.Context, userID uuid.UUID, region string) (*Order, []UnavailableItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	// UpdateStatusFrom sets the order status only when the current status
	// still equals from. It reports whether a row was updated, so a caller
	// losing a concurrent race observes false instead of overwriting.
	UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, from, to OrderStatus) (bool, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type buildMovieRow struct {
	ID                uuid.UUID      `db:"id"`
	Name              string         `db:"name"`
	Price             float64        `db:"price"`
	IsDeleted         bool           `db:"is_deleted"`
	RestrictedRegions pq.StringArray `db:"restricted_regions"`
}

// BuildFromCart snapshots the user's cart, re-validates every item, freezes
// prices and creates the order while removing the ordered items from the
// cart, all in a single transaction. Concurrent builds for the same user
// serialize on the locked cart rows; the loser sees an empty cart.
func (r *PostgresRepository) BuildFromCart(ctx context.Context, userID uuid.UUID, region string) (o *Order, warnings []UnavailableItem, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	var cartIDs []uuid.UUID
	err = tx.SelectContext(ctx, &cartIDs,
		`SELECT movie_id FROM cart_items WHERE user_id = $1 ORDER BY added_at FOR UPDATE`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to lock cart items: %w", err)
	}
	if len(cartIDs) == 0 {
		return nil, nil, ErrEmptyCart
	}

	var movies []buildMovieRow
	err = tx.SelectContext(ctx, &movies,
		`SELECT id, name, price, is_deleted, restricted_regions FROM movies WHERE id = ANY($1)`,
		pq.Array(cartIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to load cart movies: %w", err)
	}
	moviesByID := make(map[uuid.UUID]buildMovieRow, len(movies))
	for _, m := range movies {
		moviesByID[m.ID] = m
	}

	var ownedIDs []uuid.UUID
	err = tx.SelectContext(ctx, &ownedIDs,
		`SELECT movie_id FROM purchases WHERE user_id = $1 AND movie_id = ANY($2)`,
		userID, pq.Array(cartIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to load purchases: %w", err)
	}
	owned := make(map[uuid.UUID]bool, len(ownedIDs))
	for _, id := range ownedIDs {
		owned[id] = true
	}

	// Availability may have changed since the items were added, so the add-time
	// checks are repeated here under the cart lock.
	var items []OrderItem
	warnings = make([]UnavailableItem, 0)
	for _, movieID := range cartIDs {
		movie, ok := moviesByID[movieID]
		switch {
		case !ok:
			warnings = append(warnings, UnavailableItem{MovieID: movieID, Reason: "not_found"})
		case movie.IsDeleted:
			warnings = append(warnings, UnavailableItem{MovieID: movieID, Reason: "unavailable"})
		case restrictedIn(movie.RestrictedRegions, region):
			warnings = append(warnings, UnavailableItem{MovieID: movieID, Reason: "region_restricted"})
		case owned[movieID]:
			warnings = append(warnings, UnavailableItem{MovieID: movieID, Reason: "already_owned"})
		default:
			items = append(items, OrderItem{
				MovieID:      movieID,
				Name:         movie.Name,
				PriceAtOrder: movie.Price,
			})
		}
	}
	if len(items) == 0 {
		return nil, warnings, ErrNoPurchasableItems
	}

	orderedIDs := make([]uuid.UUID, 0, len(items))
	totalAmount := 0.0
	for _, item := range items {
		orderedIDs = append(orderedIDs, item.MovieID)
		totalAmount += item.PriceAtOrder
	}

	duplicate, err := r.hasPendingOrderForItems(ctx, tx, userID, orderedIDs)
	if err != nil {
		return nil, nil, err
	}
	if duplicate {
		return nil, warnings, ErrDuplicateOrder
	}

	ord := &Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      StatusPending,
		TotalAmount: totalAmount,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_amount) VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		ord.ID, ord.UserID, string(ord.Status), ord.TotalAmount,
	).Scan(&ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = ord.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, movie_id, price_at_order) VALUES ($1, $2, $3, $4)`,
			items[i].ID, items[i].OrderID, items[i].MovieID, items[i].PriceAtOrder)
		if err != nil {
			return nil, nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", ord.ID, err)
		}
	}
	ord.Items = items

	_, err = tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND movie_id = ANY($2)`,
		userID, pq.Array(orderedIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to remove ordered items from cart: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("repository: failed to commit order build: %w", err)
	}

	return ord, warnings, nil
}

func (r *PostgresRepository) hasPendingOrderForItems(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, movieIDs []uuid.UUID) (bool, error) {
	sorted := make([]uuid.UUID, len(movieIDs))
	copy(sorted, movieIDs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	var exists bool
	query := `SELECT EXISTS (
	            SELECT 1 FROM orders o
	            WHERE o.user_id = $1 AND o.status = 'pending'
	              AND (SELECT array_agg(movie_id ORDER BY movie_id) FROM order_items WHERE order_id = o.id) = $2::uuid[]
	          )`
	if err := tx.GetContext(ctx, &exists, query, userID, pq.Array(sorted)); err != nil {
		return false, fmt.Errorf("repository: failed to check for duplicate pending order: %w", err)
	}

	return exists, nil
}

func restrictedIn(regions []string, region string) bool {
	if region == "" {
		return false
	}
	for _, r := range regions {
		if r == region {
			return true
		}
	}
	return false
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var ord Order
	query := `SELECT id, user_id, status, total_amount, created_at, updated_at FROM orders WHERE id = $1`
	err := r.db.GetContext(ctx, &ord, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to get order by id %s: %w", id, err)
	}

	items, err := r.itemsForOrders(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	ord.Items = items[id]

	return &ord, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT id, user_id, status, total_amount, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	orders := make([]Order, 0)
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("repository: failed to list orders for user %s: %w", userID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	orderIDs := make([]uuid.UUID, 0, len(orders))
	for _, ord := range orders {
		orderIDs = append(orderIDs, ord.ID)
	}

	items, err := r.itemsForOrders(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *PostgresRepository) itemsForOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `SELECT oi.id, oi.order_id, oi.movie_id, m.name, oi.price_at_order
	          FROM order_items oi
	          JOIN movies m ON m.id = oi.movie_id
	          WHERE oi.order_id = ANY($1)
	          ORDER BY m.name`

	var items []OrderItem
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(orderIDs)); err != nil {
		return nil, fmt.Errorf("repository: failed to load order items: %w", err)
	}

	result := make(map[uuid.UUID][]OrderItem, len(orderIDs))
	for _, item := range items {
		result[item.OrderID] = append(result[item.OrderID], item)
	}

	return result, nil
}

func (r *PostgresRepository) UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, from, to OrderStatus) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, string(to), orderID, string(from))
	if err != nil {
		return false, fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}
