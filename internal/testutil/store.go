package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/g960059/aio/internal/db"
)

// NewStore opens a migrated store at path, or in a temp dir when path is
// empty. It is closed when the test ends.
func NewStore(t *testing.T, path string) (*db.Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	if path == "" {
		path = filepath.Join(t.TempDir(), "aio-test.db")
	}
	store, err := db.Open(ctx, path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store, ctx
}
