package task

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres tests need a disposable database; they are skipped unless
// KAIAMATE_TEST_POSTGRES_DSN points at one.
func TestPgStore(t *testing.T) {
	dsn := os.Getenv("KAIAMATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KAIAMATE_TEST_POSTGRES_DSN not set")
	}
	runStoreContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		t.Cleanup(pool.Close)
		store := NewPgStore(pool)
		if err := store.EnsureTable(ctx); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
		if _, err := pool.Exec(ctx, `TRUNCATE tasks`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}
