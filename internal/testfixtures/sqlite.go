package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/roombooking/internal/persistence/sqlite"
)

// NewSQLiteMirror opens a migrated room mirror in a temporary directory. The
// database is closed when the test ends.
func NewSQLiteMirror(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "rooms-mirror.db")
	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open mirror: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate mirror: %v", err)
	}
	return storage
}
