//go:build integration
// +build integration

package testutil

import (
	"context"
	"testing"
)

// TestSetupTestDB_Integration validates the container infrastructure itself:
// the pgvector image starts, migrations apply, and the docket tables exist.
//
// Run with: go test -tags=integration ./internal/testutil -v
func TestSetupTestDB_Integration(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := db.Pool.Ping(ctx); err != nil {
		t.Fatalf("Pool.Ping() unexpected error: %v", err)
	}

	var hasExtension bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasExtension)
	if err != nil {
		t.Fatalf("QueryRow(vector extension check) unexpected error: %v", err)
	}
	if !hasExtension {
		t.Error("pgvector extension installed = false, want true")
	}

	tables := []string{"modes", "conversations", "preferences", "issue_index"}
	for _, table := range tables {
		var exists bool
		err = db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		if err != nil {
			t.Fatalf("QueryRow(table %q check) unexpected error: %v", table, err)
		}
		if !exists {
			t.Errorf("table %q exists = false, want true", table)
		}
	}
}
