package order_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/movie-checkout/internal/config"
	"github.com/vasiliy-maslov/movie-checkout/internal/db"
	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	if os.Getenv("TEST_DB_HOST") != "" {
		cfg := config.PostgresConfig{
			Host:     os.Getenv("TEST_DB_HOST"),
			Port:     envOr("TEST_DB_PORT", "5432"),
			User:     envOr("TEST_DB_USER", "postgres"),
			Password: envOr("TEST_DB_PASSWORD", "postgres"),
			DBName:   envOr("TEST_DB_NAME", "checkout_test"),
			SSLMode:  "disable",
		}

		var err error
		testDB, err = db.Connect(cfg)
		if err != nil {
			panic("failed to connect to test database: " + err.Error())
		}
	}

	exitCode := m.Run()

	if testDB != nil {
		testDB.Close()
	}

	os.Exit(exitCode)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupRepo(t *testing.T) *order.PostgresRepository {
	if testDB == nil {
		t.Skip("TEST_DB_HOST is not set, skipping repository tests")
	}

	truncate := func() {
		_, err := testDB.Exec(`TRUNCATE TABLE webhook_events, payment_attempts, order_items, orders, purchases, cart_items, movies CASCADE`)
		if err != nil {
			t.Fatalf("Failed to truncate tables: %v", err)
		}
	}
	truncate()
	t.Cleanup(truncate)

	return order.NewPostgresRepository(testDB)
}

func seedMovie(t *testing.T, name string, price float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testDB.Exec(
		`INSERT INTO movies (id, name, year, price) VALUES ($1, $2, 2020, $3)`,
		id, name, price)
	require.NoError(t, err)
	return id
}

func seedCartItem(t *testing.T, userID, movieID uuid.UUID) {
	t.Helper()
	_, err := testDB.Exec(`INSERT INTO cart_items (user_id, movie_id) VALUES ($1, $2)`, userID, movieID)
	require.NoError(t, err)
}

func cartSize(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, testDB.Get(&n, `SELECT COUNT(*) FROM cart_items WHERE user_id = $1`, userID))
	return n
}

func TestPostgresRepository_BuildFromCart(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	movieA := seedMovie(t, "Movie A", 5)
	movieB := seedMovie(t, "Movie B", 7)
	seedCartItem(t, testUserID, movieA)
	seedCartItem(t, testUserID, movieB)

	ord, warnings, err := repo.BuildFromCart(ctx, testUserID, "US")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, order.StatusPending, ord.Status)
	assert.Equal(t, 12.0, ord.TotalAmount)
	assert.Len(t, ord.Items, 2)
	assert.Equal(t, 0, cartSize(t, testUserID), "ordered items must leave the cart")
}

func TestPostgresRepository_BuildFromCart_EmptyCart(t *testing.T) {
	repo := setupRepo(t)

	_, _, err := repo.BuildFromCart(context.Background(), testUserID, "US")
	assert.True(t, errors.Is(err, order.ErrEmptyCart))
}

func TestPostgresRepository_BuildFromCart_SoleItemUnavailable(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	movieD := seedMovie(t, "Movie D", 9)
	seedCartItem(t, testUserID, movieD)

	_, err := testDB.Exec(`UPDATE movies SET is_deleted = TRUE WHERE id = $1`, movieD)
	require.NoError(t, err)

	ord, warnings, err := repo.BuildFromCart(ctx, testUserID, "US")
	assert.True(t, errors.Is(err, order.ErrNoPurchasableItems))
	assert.Nil(t, ord)
	if assert.Len(t, warnings, 1) {
		assert.Equal(t, movieD, warnings[0].MovieID)
		assert.Equal(t, "unavailable", warnings[0].Reason)
	}

	var orderCount int
	require.NoError(t, testDB.Get(&orderCount, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 0, orderCount, "no zero-item order may be created")
}

func TestPostgresRepository_BuildFromCart_PriceFreeze(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	movieA := seedMovie(t, "Movie A", 5)
	seedCartItem(t, testUserID, movieA)

	ord, _, err := repo.BuildFromCart(ctx, testUserID, "US")
	require.NoError(t, err)

	_, err = testDB.Exec(`UPDATE movies SET price = 50 WHERE id = $1`, movieA)
	require.NoError(t, err)

	reloaded, err := repo.GetByID(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, reloaded.TotalAmount, "total is frozen at build time")
	assert.Equal(t, 5.0, reloaded.Items[0].PriceAtOrder)
}

func TestPostgresRepository_BuildFromCart_DuplicatePendingOrder(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	movieA := seedMovie(t, "Movie A", 5)
	seedCartItem(t, testUserID, movieA)

	_, _, err := repo.BuildFromCart(ctx, testUserID, "US")
	require.NoError(t, err)

	// The same movie lands in the cart again while the first order is unpaid.
	seedCartItem(t, testUserID, movieA)

	_, _, err = repo.BuildFromCart(ctx, testUserID, "US")
	assert.True(t, errors.Is(err, order.ErrDuplicateOrder))
}

func TestPostgresRepository_BuildFromCart_ConcurrentBuilds(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	movieA := seedMovie(t, "Movie A", 5)
	movieB := seedMovie(t, "Movie B", 7)
	seedCartItem(t, testUserID, movieA)
	seedCartItem(t, testUserID, movieB)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.BuildFromCart(ctx, testUserID, "US")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, losers int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, order.ErrEmptyCart) || errors.Is(err, order.ErrDuplicateOrder):
			losers++
		default:
			t.Fatalf("unexpected build error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent build may succeed")
	assert.Equal(t, 1, losers)

	var orderCount int
	require.NoError(t, testDB.Get(&orderCount, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 1, orderCount)
}

func TestPostgresRepository_UpdateStatusFrom(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	movieA := seedMovie(t, "Movie A", 5)
	seedCartItem(t, testUserID, movieA)
	ord, _, err := repo.BuildFromCart(ctx, testUserID, "US")
	require.NoError(t, err)

	updated, err := repo.UpdateStatusFrom(ctx, ord.ID, order.StatusPending, order.StatusCanceled)
	require.NoError(t, err)
	assert.True(t, updated)

	// A second guarded update from the old state must miss.
	updated, err = repo.UpdateStatusFrom(ctx, ord.ID, order.StatusPending, order.StatusPaid)
	require.NoError(t, err)
	assert.False(t, updated)
}
