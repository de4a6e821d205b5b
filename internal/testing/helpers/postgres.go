package helpers

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ederziomek/real-digital-token/internal/infra"
)

// PostgresURLEnv names the database the integration tests run against.
const PostgresURLEnv = "TEST_DATABASE_URL"

// PostgresPool connects to TEST_DATABASE_URL and skips the test when it is unset.
// Tables are shared between tests, so callers scope their data by reserve address.
func PostgresPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(PostgresURLEnv)
	if url == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}
	pool, err := infra.NewPostgresPool(context.Background(), url)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
