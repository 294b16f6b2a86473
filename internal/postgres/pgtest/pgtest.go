// Package pgtest starts a throwaway Postgres with the service schema applied.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// New skips in -short mode since it needs a docker daemon.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := ctr.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %s", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn))

	pool, err := postgres.Connect(ctx, dsn, 32)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// SeedProduct inserts a product with a price given as a decimal string.
func SeedProduct(t *testing.T, db *pgxpool.Pool, id, name, price string, stock int) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO products(id, name, price, stock) VALUES ($1, $2, $3::numeric, $4)`,
		id, name, price, stock)
	require.NoError(t, err)
}

// SeedCart creates the user's cart with items in the given order.
func SeedCart(t *testing.T, db *pgxpool.Pool, userID string, items map[string]int, order ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Exec(ctx, `INSERT INTO carts(user_id) VALUES ($1)`, userID)
	require.NoError(t, err)
	for i, pid := range order {
		_, err := db.Exec(ctx,
			`INSERT INTO cart_items(user_id, product_id, quantity, position) VALUES ($1, $2, $3, $4)`,
			userID, pid, items[pid], i)
		require.NoError(t, err)
	}
}

func Stock(t *testing.T, db *pgxpool.Pool, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(),
		`SELECT stock FROM products WHERE id=$1`, productID).Scan(&n))
	return n
}
