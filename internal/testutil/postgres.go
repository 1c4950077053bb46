// Package testutil provides shared test infrastructure: a disposable
// PostgreSQL container with the docket schema applied, genkit model and
// embedder doubles, and an SSE stream parser.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/docketbot/docket/db"
)

// TestDB is a disposable PostgreSQL instance with migrations applied.
type TestDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

// SetupTestDB starts a pgvector-enabled PostgreSQL container, runs the
// embedded migrations against it, and returns a ready pool. The cleanup
// function terminates the container.
//
//	db, cleanup := testutil.SetupTestDB(t)
//	defer cleanup()
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("docket_test"),
		postgres.WithUsername("docket_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	terminate := func() {
		_ = container.Terminate(context.Background())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		t.Fatalf("resolving connection string: %v", err)
	}

	if err := db.Migrate(connStr); err != nil {
		terminate()
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		terminate()
		t.Fatalf("creating connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		terminate()
		t.Fatalf("pinging database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		terminate()
	}
	return &TestDB{Pool: pool, ConnStr: connStr}, cleanup
}

// TruncateAll clears every docket table, so tests can share one container
// without inheriting each other's rows.
func (d *TestDB) TruncateAll(t *testing.T) {
	t.Helper()
	_, err := d.Pool.Exec(context.Background(),
		`TRUNCATE modes, conversations, preferences, issue_index`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
